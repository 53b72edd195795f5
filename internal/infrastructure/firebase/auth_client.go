package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"tidyhome/internal/domain/entity"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyViewer checks an ID token and maps its claims to a chat viewer.
func (f *FirebaseAuthClient) VerifyViewer(ctx context.Context, idToken string) (*entity.Viewer, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, err
	}

	viewer := ViewerFromToken(token)
	return &viewer, nil
}

// TestConnection looks up a user that does not exist; any answer other than
// "not found" means the Auth backend is unreachable or misconfigured.
func (f *FirebaseAuthClient) TestConnection(ctx context.Context) error {
	_, err := f.client.GetUser(ctx, "tidyhome-health-probe")
	if err != nil && !auth.IsUserNotFound(err) {
		return err
	}
	return nil
}

// ViewerFromToken reads the role from the "admin" or "role" custom claim.
// Everyone else is a customer.
func ViewerFromToken(token *auth.Token) entity.Viewer {
	viewer := entity.Viewer{
		UserID: token.UID,
		Role:   entity.RoleCustomer,
	}

	if isAdmin, ok := token.Claims["admin"].(bool); ok && isAdmin {
		viewer.Role = entity.RoleAdmin
	}
	if role, ok := token.Claims["role"].(string); ok && role == string(entity.RoleAdmin) {
		viewer.Role = entity.RoleAdmin
	}

	viewer.DisplayName, _ = token.Claims["name"].(string)
	viewer.PhotoURL, _ = token.Claims["picture"].(string)
	viewer.Email, _ = token.Claims["email"].(string)

	return viewer
}
