package publish

import (
	"context"
	"os"
	"path"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzurePublisher implements Publisher for Azure Blob Storage.
type AzurePublisher struct {
	client    *azblob.Client
	container string
	prefix    string
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string
	Prefix           string
}

// NewAzurePublisher creates a new Azure Blob Storage publisher.
func NewAzurePublisher(cfg AzureConfig) (*AzurePublisher, error) {
	var client *azblob.Client
	var err error

	if cfg.ConnectionString != "" {
		client, err = azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
		if err != nil {
			return nil, err
		}
	} else {
		url := "https://" + cfg.AccountName + ".blob.core.windows.net/"
		cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
		if err != nil {
			return nil, err
		}
		client, err = azblob.NewClientWithSharedKeyCredential(url, cred, nil)
		if err != nil {
			return nil, err
		}
	}

	return &AzurePublisher{
		client:    client,
		container: cfg.Container,
		prefix:    cfg.Prefix,
	}, nil
}

// Publish uploads a file or directory tree to the container.
func (p *AzurePublisher) Publish(ctx context.Context, localPath, key string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return walkFiles(localPath, func(filePath, rel string) error {
			return p.uploadFile(ctx, filePath, path.Join(key, rel))
		})
	}
	return p.uploadFile(ctx, localPath, key)
}

func (p *AzurePublisher) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath) //#nosec G304 -- localPath is a controlled local path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	_, err = p.client.UploadFile(ctx, p.container, p.fullKey(key), f, nil)
	return err
}

// fullKey returns the full blob name including prefix.
func (p *AzurePublisher) fullKey(key string) string {
	if p.prefix == "" {
		return key
	}
	return p.prefix + "/" + key
}
