package archive

// Note: use requires a ~/.aws/credentials file, as with the teacher's
// S3Storage. See
// https://docs.aws.amazon.com/sdk-for-go/v1/developer-guide/configuring-sdk.html#specifying-credentials

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ndbroadbent/ghost-static-site-generator/resource"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Archive mirrors written resources to an S3 bucket, one object per URL
// key. This is an optional deploy sink alongside (not instead of) the
// disk tree the Reachability GC reconciles.
type S3Archive struct {
	svc    *s3.S3
	bucket string
}

func newS3Archive(path string) (Archive, error) {
	region, bucket, ok := strings.Cut(path, ":")
	if !ok {
		return nil, fmt.Errorf(`archive: s3 path %q does not have expected format "<region>:<bucket>"`, path)
	}
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("archive: create aws session: %w", err)
	}
	return &S3Archive{svc: s3.New(sess), bucket: bucket}, nil
}

func (a *S3Archive) Write(key string, r *resource.Resource) error {
	obj := &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if r.Redirect != "" {
		obj.SetWebsiteRedirectLocation(r.Redirect)
	} else {
		obj.SetBody(bytes.NewReader(r.Content))
		obj.SetContentType(r.ContentType)
	}
	_, err := a.svc.PutObject(obj)
	return err
}

func (a *S3Archive) Close() error { return nil }

func init() {
	register("s3", newS3Archive)
}
