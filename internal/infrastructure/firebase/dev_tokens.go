package firebase

import (
	"context"
	"fmt"
	"strings"

	"tidyhome/internal/domain/entity"
)

// DevViewerVerifier accepts "dev:<role>:<uid>[:<name>]" tokens so the server
// can run against the in-memory store without a Firebase project. It must
// never be wired in production.
type DevViewerVerifier struct{}

func NewDevViewerVerifier() *DevViewerVerifier {
	return &DevViewerVerifier{}
}

func (DevViewerVerifier) VerifyViewer(ctx context.Context, idToken string) (*entity.Viewer, error) {
	parts := strings.SplitN(idToken, ":", 4)
	if len(parts) < 3 || parts[0] != "dev" || parts[2] == "" {
		return nil, fmt.Errorf("malformed dev token")
	}

	role, err := entity.ParseRole(parts[1])
	if err != nil {
		return nil, err
	}

	viewer := &entity.Viewer{
		UserID: parts[2],
		Role:   role,
	}
	if len(parts) == 4 {
		viewer.DisplayName = parts[3]
	}
	return viewer, nil
}

func (DevViewerVerifier) TestConnection(ctx context.Context) error {
	return nil
}
