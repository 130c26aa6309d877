package sdk

import (
	"context"
	"strconv"
)

// GetMe gets the current user's info
func (c *Client) GetMe(ctx context.Context) (*UserInfo, error) {
	var result UserInfo
	if err := c.get(ctx, "/api/users/me", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser gets a user's info by Id
func (c *Client) GetUser(ctx context.Context, userId int64) (*UserInfo, error) {
	var result UserInfo
	if err := c.get(ctx, "/api/users/"+strconv.FormatInt(userId, 10), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
