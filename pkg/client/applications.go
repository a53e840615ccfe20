package client

import (
	"context"
	"fmt"
	"net/url"
)

// ApplicationsService вызовы каталога приложений.
type ApplicationsService struct {
	c *Client
}

// List возвращает каталог приложений с признаком доступности для
// текущего пользователя.
func (s *ApplicationsService) List(ctx context.Context) ([]Application, error) {
	var out struct {
		Applications []Application `json:"applications"`
	}
	if err := s.c.get(ctx, "/applications", &out); err != nil {
		return nil, err
	}
	return out.Applications, nil
}

// Get возвращает одно приложение по slug.
func (s *ApplicationsService) Get(ctx context.Context, slug string) (*Application, error) {
	var app Application
	if err := s.c.get(ctx, fmt.Sprintf("/applications/%s", url.PathEscape(slug)), &app); err != nil {
		return nil, err
	}
	return &app, nil
}
