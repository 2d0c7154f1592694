// Package evidence keeps the ticket photos that resolved complaints.
package evidence

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"sk3-portal/internal/config"
)

type Archive interface {
	// Store saves one ticket photo and returns its object key.
	Store(ctx context.Context, complaintID int64, ticketNumber, filename string, image []byte) (string, error)
}

type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Nop drops every photo. Used when no bucket is configured.
type Nop struct{}

func (Nop) Store(context.Context, int64, string, string, []byte) (string, error) {
	return "", nil
}

type S3Archive struct {
	client PutObjectAPI
	bucket string
}

func NewS3Archive(client PutObjectAPI, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket}
}

// New builds the archive described by cfg. A custom endpoint (localstack,
// minio) switches the client to path-style addressing.
func New(ctx context.Context, cfg config.EvidenceConfig) (Archive, error) {
	if cfg.Bucket == "" {
		return Nop{}, nil
	}
	awsConfig, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})
	return NewS3Archive(client, cfg.Bucket), nil
}

// BuildKey returns tickets/<complaint-id>/<ticket-number>-<uuid><ext>.
func BuildKey(complaintID int64, ticketNumber, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ticketNumber == "" {
		ticketNumber = "unknown"
	}
	return fmt.Sprintf("tickets/%d/%s-%s%s", complaintID, ticketNumber, uuid.NewString(), ext)
}

// ParseKey extracts the complaint id and ticket number from a key built by
// BuildKey.
func ParseKey(key string) (complaintID int64, ticketNumber string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "tickets" {
		return 0, "", false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	name := strings.TrimSuffix(parts[2], filepath.Ext(parts[2]))
	// uuid has a fixed length of 36 plus the separating dash
	if len(name) < 38 || name[len(name)-37] != '-' {
		return 0, "", false
	}
	return id, name[:len(name)-37], true
}

func (a *S3Archive) Store(ctx context.Context, complaintID int64, ticketNumber, filename string, image []byte) (string, error) {
	key := BuildKey(complaintID, ticketNumber, filename)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(image),
		ContentType: aws.String(http.DetectContentType(image)),
		Metadata: map[string]string{
			"complaint_id":  strconv.FormatInt(complaintID, 10),
			"ticket_number": ticketNumber,
		},
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
