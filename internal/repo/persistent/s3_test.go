package persistent

import (
	"errors"
	"fmt"
	"testing"

	"github.com/andreyxaxa/photo-pipeline/pkg/types/errs"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestNotFound(t *testing.T) {
	tests := map[string]error{
		"head":      &types.NotFound{},
		"get":       fmt.Errorf("wrapped: %w", &types.NoSuchKey{}),
		"api 404":   &smithy.GenericAPIError{Code: "NotFound"},
		"api nokey": &smithy.GenericAPIError{Code: "NoSuchKey"},
	}

	for name, err := range tests {
		assert.ErrorIs(t, notFound(err), errs.ErrBlobNotFound, name)
	}

	other := &smithy.GenericAPIError{Code: "AccessDenied"}
	assert.Equal(t, error(other), notFound(other))

	plain := errors.New("timeout")
	assert.Equal(t, plain, notFound(plain))
}
