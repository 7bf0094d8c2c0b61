package google

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/taskwall/pkg/auth"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

// NewClient creates a Google Tasks client using the stored OAuth token.
func NewClient(ctx context.Context) (*TasksClient, error) {
	client, err := auth.GetClient(ctx, auth.Scopes)
	if err != nil {
		return nil, err
	}

	srv, err := tasks.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Tasks client: %w", err)
	}
	return NewTasksClient(srv), nil
}
