package output

import "context"

// Publisher is the secondary port for shipping a finished container to
// its destination after a successful run.
type Publisher interface {
	// Publish uploads the file or directory tree at localPath under the
	// given key.
	Publish(ctx context.Context, localPath, key string) error
}

// PublisherType identifies the publishing backend.
type PublisherType string

// Known publisher backends.
const (
	PublisherTypeLocal PublisherType = "local"
	PublisherTypeS3    PublisherType = "s3"
	PublisherTypeAzure PublisherType = "azure"
)
