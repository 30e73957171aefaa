package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// bucketClient wraps the three bucket operations sync mode needs.
// Exports land as {bucket}/{YYYY-MM-DD}/transactions_{ts}.csv.gz, one
// file per app.
type bucketClient struct {
	bucket *storage.BucketHandle
}

func newBucketClient(ctx context.Context, bucket string) (*bucketClient, func() error, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage client: %w", err)
	}
	return &bucketClient{bucket: client.Bucket(bucket)}, client.Close, nil
}

// latestDateFolder returns the most recent YYYY-MM-DD prefix in the
// bucket, or "" when no export has landed yet.
func (c *bucketClient) latestDateFolder(ctx context.Context) (string, error) {
	it := c.bucket.Objects(ctx, &storage.Query{Delimiter: "/"})
	dates := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("list date folders: %w", err)
		}
		if attrs.Prefix == "" {
			continue
		}
		folder := strings.TrimSuffix(attrs.Prefix, "/")
		if _, err := time.Parse("2006-01-02", folder); err != nil {
			continue
		}
		dates = append(dates, folder)
	}
	if len(dates) == 0 {
		return "", nil
	}
	sort.Strings(dates)
	return dates[len(dates)-1], nil
}

// listExports returns the CSV export objects under one date folder.
func (c *bucketClient) listExports(ctx context.Context, dateFolder string) ([]string, error) {
	it := c.bucket.Objects(ctx, &storage.Query{Prefix: dateFolder + "/"})
	names := []string{}
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list exports: %w", err)
		}
		if strings.HasSuffix(attrs.Name, ".csv") || strings.HasSuffix(attrs.Name, ".csv.gz") {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}

func (c *bucketClient) download(ctx context.Context, object string, dest string) error {
	reader, err := c.bucket.Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open %s: %w", object, err)
	}
	defer reader.Close()

	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, reader); err != nil {
		file.Close()
		return fmt.Errorf("download %s: %w", object, err)
	}
	return file.Close()
}
