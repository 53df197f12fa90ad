package smoke

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Scenario is one independent client-side check. Scenarios use disjoint user
// ids so they can run concurrently against one server.
type Scenario struct {
	Name string
	Run  func(ctx context.Context, c *HTTPClient) error
}

// Scenarios returns the full suite in declaration order.
func Scenarios() []Scenario {
	return []Scenario{
		{Name: "app_health", Run: appHealth},
		{Name: "create_and_get_user", Run: createAndGetUser},
		{Name: "user_validation", Run: userValidation},
		{Name: "list_users_with_query", Run: listUsersWithQuery},
		{Name: "create_item_json", Run: createItemJSON},
		{Name: "create_item_form", Run: createItemForm},
		{Name: "update_user_with_headers", Run: updateUserWithHeaders},
		{Name: "search_items", Run: searchItems},
		{Name: "path_parameter_validation", Run: pathParameterValidation},
		{Name: "item_price_validation", Run: itemPriceValidation},
	}
}

func selectScenarios(only []string) ([]Scenario, error) {
	all := Scenarios()
	if len(only) == 0 {
		return all, nil
	}
	byName := make(map[string]Scenario, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	out := make([]Scenario, 0, len(only))
	for _, name := range only {
		s, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
		}
		out = append(out, s)
	}
	return out, nil
}

func expectStatus(resp response, want int) error {
	if resp.Status != want {
		return fmt.Errorf("%w: status %d, want %d", ErrUnexpected, resp.Status, want)
	}
	return nil
}

func expectField(obj map[string]any, key string, want any) error {
	if got := obj[key]; got != want {
		return fmt.Errorf("%w: %s = %v, want %v", ErrUnexpected, key, got, want)
	}
	return nil
}

func object(obj map[string]any, key string) (map[string]any, error) {
	v, ok := obj[key].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an object", ErrUnexpected, key)
	}
	return v, nil
}

func list(obj map[string]any, key string) ([]any, error) {
	v, ok := obj[key].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a list", ErrUnexpected, key)
	}
	return v, nil
}

func appHealth(ctx context.Context, c *HTTPClient) error {
	resp, err := c.Get(ctx, "/")
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	return expectField(resp.Body, "message", "FastAPI is running successfully!")
}

func createAndGetUser(ctx context.Context, c *HTTPClient) error {
	resp, err := c.PostJSON(ctx, "/users", map[string]any{
		"id": 1, "username": "johndoe", "email": "john@example.com", "age": 30,
		"tags": []string{"developer", "python"},
	})
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	if err := expectField(resp.Body, "message", "User created"); err != nil {
		return err
	}

	resp, err = c.Get(ctx, "/users/1")
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	user, err := object(resp.Body, "user")
	if err != nil {
		return err
	}
	if err := expectField(user, "username", "johndoe"); err != nil {
		return err
	}
	return expectField(user, "email", "john@example.com")
}

func userValidation(ctx context.Context, c *HTTPClient) error {
	for _, body := range []map[string]any{
		{"id": 2, "username": "testuser", "email": "invalid-email", "age": 25},
		{"id": 3, "username": "ab", "email": "test@example.com", "age": 25},
	} {
		resp, err := c.PostJSON(ctx, "/users", body)
		if err != nil {
			return err
		}
		if err := expectStatus(resp, http.StatusUnprocessableEntity); err != nil {
			return err
		}
		if _, err := list(resp.Body, "detail"); err != nil {
			return err
		}
	}
	return nil
}

func listUsersWithQuery(ctx context.Context, c *HTTPClient) error {
	for _, u := range []map[string]any{
		{"id": 10, "username": "alice", "email": "alice@example.com", "age": 25, "tags": []string{"developer"}},
		{"id": 11, "username": "bob", "email": "bob@example.com", "age": 35, "tags": []string{"manager"}},
		{"id": 12, "username": "charlie", "email": "charlie@example.com", "age": 28, "tags": []string{"developer"}},
	} {
		resp, err := c.PostJSON(ctx, "/users", u)
		if err != nil {
			return err
		}
		if err := expectStatus(resp, http.StatusOK); err != nil {
			return err
		}
	}

	resp, err := c.Get(ctx, "/users?skip=0&limit=2&age_min=30")
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	users, err := list(resp.Body, "users")
	if err != nil {
		return err
	}
	for _, raw := range users {
		u, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: user is not an object", ErrUnexpected)
		}
		if age, _ := u["age"].(float64); age < 30 {
			return fmt.Errorf("%w: age_min=30 returned age %v", ErrUnexpected, u["age"])
		}
	}
	if len(users) > 2 {
		return fmt.Errorf("%w: limit=2 returned %d users", ErrUnexpected, len(users))
	}
	return nil
}

func createItemJSON(ctx context.Context, c *HTTPClient) error {
	resp, err := c.PostJSON(ctx, "/items/json", map[string]any{
		"name": "Laptop", "description": "Gaming laptop", "price": 1200.00,
		"tags": []string{"electronics", "gaming"},
	})
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	if err := expectField(resp.Body, "message", "Item created from JSON"); err != nil {
		return err
	}
	item, err := object(resp.Body, "item")
	if err != nil {
		return err
	}
	if err := expectField(item, "name", "Laptop"); err != nil {
		return err
	}
	return expectField(item, "price", 1200.0)
}

func createItemForm(ctx context.Context, c *HTTPClient) error {
	resp, err := c.PostForm(ctx, "/items/form", url.Values{
		"name":        {"Phone"},
		"description": {"Smartphone"},
		"price":       {"800.00"},
	})
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	if err := expectField(resp.Body, "message", "Item created from form"); err != nil {
		return err
	}
	item, err := object(resp.Body, "item")
	if err != nil {
		return err
	}
	if err := expectField(item, "name", "Phone"); err != nil {
		return err
	}
	return expectField(item, "price", 800.0)
}

func updateUserWithHeaders(ctx context.Context, c *HTTPClient) error {
	resp, err := c.PostJSON(ctx, "/users", map[string]any{
		"id": 20, "username": "testuser", "email": "test@example.com", "age": 25,
		"tags": []string{"tester"},
	})
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}

	resp, err = c.PutJSON(ctx, "/users/20", map[string]any{
		"id": 20, "username": "updateduser", "email": "updated@example.com", "age": 26,
		"tags": []string{"senior-tester"},
	}, withHeader("X-API-Key", "test-api-key"), withCookie("session_id", "test-session-123"))
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	if err := expectField(resp.Body, "message", "User updated"); err != nil {
		return err
	}
	user, err := object(resp.Body, "user")
	if err != nil {
		return err
	}
	if err := expectField(user, "username", "updateduser"); err != nil {
		return err
	}
	meta, err := object(resp.Body, "metadata")
	if err != nil {
		return err
	}
	if err := expectField(meta, "api_key", "test-api-key"); err != nil {
		return err
	}
	return expectField(meta, "session_id", "test-session-123")
}

func searchItems(ctx context.Context, c *HTTPClient) error {
	for _, it := range []map[string]any{
		{"name": "Gaming Laptop", "description": "High-end gaming laptop", "price": 1500.00},
		{"name": "Office Laptop", "description": "Business laptop", "price": 800.00},
		{"name": "Gaming Mouse", "description": "RGB gaming mouse", "price": 50.00},
	} {
		resp, err := c.PostJSON(ctx, "/items/json", it)
		if err != nil {
			return err
		}
		if err := expectStatus(resp, http.StatusOK); err != nil {
			return err
		}
	}

	resp, err := c.Get(ctx, "/search?q=gaming&price_min=40&price_max=2000")
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	results, err := list(resp.Body, "results")
	if err != nil {
		return err
	}
	if len(results) < 2 {
		return fmt.Errorf("%w: search returned %d results, want at least 2", ErrUnexpected, len(results))
	}
	return nil
}

func pathParameterValidation(ctx context.Context, c *HTTPClient) error {
	resp, err := c.Get(ctx, "/users/0")
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusUnprocessableEntity); err != nil {
		return err
	}

	resp, err = c.Get(ctx, "/users/9999")
	if err != nil {
		return err
	}
	if err := expectStatus(resp, http.StatusOK); err != nil {
		return err
	}
	return expectField(resp.Body, "error", "User not found")
}

func itemPriceValidation(ctx context.Context, c *HTTPClient) error {
	resp, err := c.PostJSON(ctx, "/items/json", map[string]any{
		"name": "Invalid Item", "description": "Item with negative price", "price": -100.00,
	})
	if err != nil {
		return err
	}
	return expectStatus(resp, http.StatusUnprocessableEntity)
}
