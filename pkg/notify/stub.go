//go:build !linux

package notify

import "github.com/sirupsen/logrus"

// New returns a no-op notifier on non-Linux platforms.
func New(_ string, _ logrus.FieldLogger) (Notifier, error) {
	return &stubNotifier{}, nil
}
