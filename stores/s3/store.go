package s3

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"collabdoc-server/core"
)

// DocumentStore keeps each document's content as one JSON object in a
// bucket. Chat and user state need the relational backend; this store
// only implements core.DocumentStore.
type DocumentStore struct {
	client *s3.Client
	bucket string
}

func NewDocumentStore(bucketName string) *DocumentStore {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &DocumentStore{
		client: s3.NewFromConfig(cfg),
		bucket: bucketName,
	}
}

type storedDocument struct {
	Content   string    `json:"content"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func documentKey(id string) string {
	return "documents/" + id + ".json"
}

func (s *DocumentStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(documentKey(id)),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NoSuchKey") {
			return nil, fmt.Errorf("document with id %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document with id %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %v", err)
	}

	var stored storedDocument
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %v", id, err)
	}

	return &core.Document{
		ID:        id,
		Content:   stored.Content,
		UpdatedBy: stored.UpdatedBy,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}

func (s *DocumentStore) UpdateDocumentContent(ctx context.Context, id, content, editorID string) error {
	data, err := json.Marshal(storedDocument{
		Content:   content,
		UpdatedBy: editorID,
		UpdatedAt: time.Now(),
	})
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(documentKey(id)),
		Body:   strings.NewReader(string(data)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload document %s: %v", id, err)
	}
	return nil
}
