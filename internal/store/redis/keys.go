package redis

const (
	// KeyPrefixEntry is the prefix for journal entry documents
	KeyPrefixEntry = "together:entry:"
	// KeyAllEntries is the set of all journal entry IDs
	KeyAllEntries = "together:entries:all"
	// KeyPrefixImage is the prefix for image blob hashes
	KeyPrefixImage = "together:image:"
	// KeyAllImages is the set of all image IDs
	KeyAllImages = "together:images:all"
)

// EntryKey returns the Redis key for a journal entry by its application id
func EntryKey(id string) string {
	return KeyPrefixEntry + id
}

// ImageKey returns the Redis key for an image blob
func ImageKey(id string) string {
	return KeyPrefixImage + id
}
