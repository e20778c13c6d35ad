// Package profile loads the couple's profile: names, the start date and the
// zone every day count is computed in.
package profile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/together/internal/calendar"
)

const (
	DefaultTitle     = "Together"
	DefaultStartDate = "2022-12-10"
	DefaultTimezone  = "Asia/Shanghai"

	startDateLayout = "2006-01-02"
)

// Profile is the content of profile.yaml
type Profile struct {
	Title      string   `yaml:"title"`
	Partners   []string `yaml:"partners,omitempty"`
	StartDate  string   `yaml:"start_date"` // YYYY-MM-DD
	Timezone   string   `yaml:"timezone"`   // IANA name
	DateLayout string   `yaml:"date_layout,omitempty"`
}

// Default is used when no profile file is configured.
func Default() Profile {
	return Profile{
		Title:      DefaultTitle,
		StartDate:  DefaultStartDate,
		Timezone:   DefaultTimezone,
		DateLayout: calendar.DefaultDateLayout,
	}
}

// Loader reads a profile file
type Loader struct {
	filePath string
}

// NewLoader creates a loader; an empty path yields the defaults
func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load reads and parses the profile. Missing fields keep their defaults and
// ${VAR} references are expanded from the environment.
func (l *Loader) Load() (Profile, error) {
	p := Default()
	if l.filePath == "" {
		return p, nil
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile file: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate checks that the start date and the zone can be used.
func (p Profile) Validate() error {
	if _, err := p.Location(); err != nil {
		return err
	}
	if _, err := p.Start(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (p Profile) Location() (*time.Location, error) {
	name := strings.TrimSpace(p.Timezone)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// Start is midnight of the start date in the profile zone.
func (p Profile) Start() (time.Time, error) {
	loc, err := p.Location()
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.ParseInLocation(startDateLayout, strings.TrimSpace(p.StartDate), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start_date %q: %w", p.StartDate, err)
	}
	return t, nil
}

// Calendar builds the day counter for this profile. A nil clock means
// time.Now.
func (p Profile) Calendar(clock func() time.Time) (*calendar.Calendar, error) {
	start, err := p.Start()
	if err != nil {
		return nil, err
	}
	return calendar.New(start, start.Location(), clock, p.DateLayout), nil
}

// Names joins the partners for display ("Ana & Ben").
func (p Profile) Names() string {
	return strings.Join(p.Partners, " & ")
}
