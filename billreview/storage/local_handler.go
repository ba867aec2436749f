package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/chrscato/cdx-billreview/billreview/constants"
	"github.com/chrscato/cdx-billreview/billreview/models"
)

// LocalPayloadHandler manages payloads on the local filesystem.
// This handler should only be used for local dev/testing now.
type LocalPayloadHandler struct {
	Logger         logrus.FieldLogger
	RootDir        string
	FailsPrefix    string
	ResolvedPrefix string
}

var _ PayloadHandler = &LocalPayloadHandler{}

func (handler *LocalPayloadHandler) ListPayloads(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(handler.failsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "could not list local payloads")
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		filenames = append(filenames, entry.Name())
	}
	return filenames, nil
}

func (handler *LocalPayloadHandler) FetchPayload(ctx context.Context, filename string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(handler.failsDir(), filename))
	if err != nil {
		err = errors.Wrapf(err, "could not read payload %s", filename)
		handler.Logger.Error(err)
		return nil, err
	}
	return data, nil
}

func (handler *LocalPayloadHandler) PutPayload(ctx context.Context, filename string, data []byte) error {
	dir := handler.failsDir()
	if err := os.MkdirAll(dir, 0744); err != nil {
		return errors.Wrap(err, "could not create fails dir")
	}
	return os.WriteFile(filepath.Join(dir, filename), data, 0644)
}

func (handler *LocalPayloadHandler) ResolvePayload(ctx context.Context, filename string, result *models.AssignmentResult) error {
	data, err := handler.FetchPayload(ctx, filename)
	if err != nil {
		return err
	}

	stamped, err := stampPayload(data, result)
	if err != nil {
		return err
	}

	resolvedDir := handler.resolvedDir()
	if err := os.MkdirAll(resolvedDir, 0744); err != nil {
		return errors.Wrap(err, "could not create resolved dir")
	}
	if err := os.WriteFile(filepath.Join(resolvedDir, filename), stamped, 0644); err != nil {
		return errors.Wrapf(err, "could not write resolved payload %s", filename)
	}

	// Remove last: a failure here leaves a duplicate, never a lost payload.
	if err := os.Remove(filepath.Join(handler.failsDir(), filename)); err != nil {
		return errors.Wrapf(err, "could not remove payload %s after resolution", filename)
	}

	handler.Logger.Infof("payload %s resolved", filename)
	return nil
}

func (handler *LocalPayloadHandler) failsDir() string {
	prefix := handler.FailsPrefix
	if prefix == "" {
		prefix = constants.DefaultFailsPrefix
	}
	return filepath.Join(handler.RootDir, filepath.FromSlash(prefix))
}

func (handler *LocalPayloadHandler) resolvedDir() string {
	prefix := handler.ResolvedPrefix
	if prefix == "" {
		prefix = constants.DefaultResolvedPrefix
	}
	return filepath.Join(handler.RootDir, filepath.FromSlash(prefix))
}
