package greq

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
)

// AwsSignatureAuth signs requests with AWS Signature Version 4.
// The payload is hashed, so the request body is buffered before signing.
type AwsSignatureAuth struct {
	AccessKey    string
	SecretKey    string
	Region       string
	ServiceName  string
	SessionToken string

	// Now overrides the signing clock; used by tests.
	Now func() time.Time

	mu     sync.Mutex
	signer *v4.Signer
}

func (a *AwsSignatureAuth) Prepare(context.Context) error {
	_, err := a.getSigner()
	return err
}

// getSigner validates the settings and creates the signer once.
func (a *AwsSignatureAuth) getSigner() (*v4.Signer, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.signer != nil {
		return a.signer, nil
	}
	if a.AccessKey == "" || a.SecretKey == "" {
		return nil, authError("aws access key and secret key are required").Build()
	}
	if a.Region == "" || a.ServiceName == "" {
		return nil, authError("aws region and service name are required").Build()
	}
	a.signer = v4.NewSigner(credentials.NewStaticCredentials(a.AccessKey, a.SecretKey, a.SessionToken))
	return a.signer, nil
}

func (a *AwsSignatureAuth) Apply(req *http.Request) error {
	signer, err := a.getSigner()
	if err != nil {
		return err
	}

	var body io.ReadSeeker
	if req.Body != nil && req.Body != http.NoBody {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return WrapError(err, CategoryAuth, "failed to read body for signing").Build()
		}
		body = bytes.NewReader(data)
	}

	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	if _, err := signer.Sign(req, body, a.ServiceName, a.Region, now()); err != nil {
		return WrapError(err, CategoryAuth, "failed to sign request").
			WithContext("service", a.ServiceName).
			WithContext("region", a.Region).
			Build()
	}
	return nil
}
