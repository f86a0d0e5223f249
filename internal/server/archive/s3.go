// Package archive stores completed stories as JSON objects in S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/relaytale/internal/server/models"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) error {
		_, err := c.PutObject(ctx, in)
		return err
	}
)

// Settings describes the target bucket and credentials.
type Settings struct {
	Bucket   string
	Region   string
	Endpoint string
	User     string
	Password string
}

// S3Archiver writes one object per completed story.
type S3Archiver struct {
	client *s3.Client
	bucket string
}

// NewS3Archiver builds an S3 client with static credentials and a custom
// endpoint, using path-style addressing so MinIO works out of the box.
func NewS3Archiver(ctx context.Context, st Settings) (*S3Archiver, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(st.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(st.User, st.Password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if st.Endpoint != "" {
			o.BaseEndpoint = aws.String(st.Endpoint)
		}
		o.UsePathStyle = true
	})

	return &S3Archiver{client: client, bucket: st.Bucket}, nil
}

// Record is the archived JSON document.
type Record struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	DateCreated  time.Time    `json:"date_created"`
	DateComplete time.Time    `json:"date_complete"`
	Parts        []RecordPart `json:"parts"`
}

type RecordPart struct {
	Number       int        `json:"number"`
	Text         string     `json:"text"`
	DateComplete *time.Time `json:"date_complete,omitempty"`
}

// ObjectKey returns the key a completed story is stored under.
func ObjectKey(story *models.StoryWithParts) string {
	d := time.Now().UTC()
	if story.DateComplete != nil {
		d = story.DateComplete.UTC()
	}
	return fmt.Sprintf("stories/%d/%02d/%02d/%s.json", d.Year(), d.Month(), d.Day(), story.ID)
}

// NewRecord converts a story into its archived form. Writer ids are left out.
func NewRecord(story *models.StoryWithParts) Record {
	rec := Record{
		ID:          story.ID,
		DateCreated: story.DateCreated,
		Parts:       make([]RecordPart, 0, len(story.Parts)),
	}
	if story.Title != nil {
		rec.Title = *story.Title
	}
	if story.DateComplete != nil {
		rec.DateComplete = *story.DateComplete
	}
	for _, p := range story.Parts {
		rec.Parts = append(rec.Parts, RecordPart{Number: p.PartNumber, Text: p.PartText, DateComplete: p.DateComplete})
	}
	return rec
}

func (a *S3Archiver) Archive(ctx context.Context, story *models.StoryWithParts) error {
	body, err := json.Marshal(NewRecord(story))
	if err != nil {
		return fmt.Errorf("marshal story: %w", err)
	}

	err = putObject(a.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(ObjectKey(story)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put story %s: %w", story.ID, err)
	}
	return nil
}
