package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/okian/paramapi/internal/adapters/http/api"
	repository "github.com/okian/paramapi/internal/adapters/repository"
	service "github.com/okian/paramapi/internal/app"
	"github.com/okian/paramapi/internal/domain/model"
	"github.com/okian/paramapi/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

func newHandler(opts ...api.Option) http.Handler {
	svc := service.New(service.WithStore(repository.NewMemoryStore(repository.WithMetrics(false))))
	return api.NewServer(svc, svc, opts...).Routes(context.Background())
}

func do(h http.Handler, method, target string, body io.Reader, mutate ...func(*http.Request)) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, m := range mutate {
		m(req)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func jsonBody(v string) io.Reader { return strings.NewReader(v) }

func userJSON(id int, username, email string, age int, tags ...string) string {
	b, _ := json.Marshal(map[string]any{
		"id": id, "username": username, "email": email, "age": age, "tags": append([]string{}, tags...),
	})
	return string(b)
}

func details(out map[string]any) []map[string]any {
	raw, _ := out["detail"].([]any)
	res := make([]map[string]any, 0, len(raw))
	for _, d := range raw {
		if m, ok := d.(map[string]any); ok {
			res = append(res, m)
		}
	}
	return res
}

func locs(out map[string]any) []string {
	var res []string
	for _, d := range details(out) {
		parts := make([]string, 0, 3)
		for _, p := range d["loc"].([]any) {
			parts = append(parts, fmt.Sprint(p))
		}
		res = append(res, strings.Join(parts, "."))
	}
	sort.Strings(res)
	return res
}

func usernames(list any) []string {
	var res []string
	for _, u := range list.([]any) {
		res = append(res, u.(map[string]any)["username"].(string))
	}
	return res
}

func TestServer_Routes(t *testing.T) {
	Convey("Given the API router", t, func() {
		h := newHandler()

		Convey("When requesting the root", func() {
			w, out := do(h, http.MethodGet, "/", nil)

			Convey("Then the running message is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["message"], ShouldEqual, "FastAPI is running successfully!")
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
			})
		})

		Convey("When requesting health", func() {
			w, out := do(h, http.MethodGet, "/healthz", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(out["status"], ShouldEqual, "ok")
		})

		Convey("When requesting stats after writes", func() {
			do(h, http.MethodPost, "/users", jsonBody(userJSON(1, "johndoe", "john@example.com", 30)))
			do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"Laptop","price":1200.0}`))
			w, out := do(h, http.MethodGet, "/stats", nil)

			Convey("Then entity counts are reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["users"], ShouldEqual, float64(1))
				So(out["items"], ShouldEqual, float64(1))
			})
		})

		Convey("When scraping metrics", func() {
			do(h, http.MethodGet, "/", nil)
			w, _ := do(h, http.MethodGet, "/metrics", nil)

			Convey("Then request counters are exposed", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "paramapi_api_http_requests_total")
			})
		})

		Convey("When requesting the docs", func() {
			w, _ := do(h, http.MethodGet, "/docs", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			w, _ = do(h, http.MethodGet, "/openapi.yaml", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When requesting an unknown route", func() {
			w, out := do(h, http.MethodGet, "/nope", nil)

			Convey("Then a JSON 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(out["detail"], ShouldEqual, "Not Found")
			})
		})

		Convey("When using the wrong method", func() {
			w, out := do(h, http.MethodDelete, "/users/1", nil)

			Convey("Then a JSON 405 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(out["detail"], ShouldEqual, "Method Not Allowed")
			})
		})

		Convey("When a request id is supplied", func() {
			w, _ := do(h, http.MethodGet, "/", nil, func(r *http.Request) {
				r.Header.Set(api.RequestIDHeader, "req-123")
			})
			So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "req-123")
		})

		Convey("When no request id is supplied", func() {
			w, _ := do(h, http.MethodGet, "/", nil)
			So(len(w.Header().Get(api.RequestIDHeader)), ShouldEqual, 36)
		})
	})
}

func TestUsers(t *testing.T) {
	Convey("Given an empty API", t, func() {
		h := newHandler()

		Convey("When a valid user is created", func() {
			w, out := do(h, http.MethodPost, "/users", jsonBody(userJSON(1, "johndoe", "john@example.com", 30)))

			Convey("Then it is echoed with empty tags", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["message"], ShouldEqual, "User created")
				user := out["user"].(map[string]any)
				So(user["username"], ShouldEqual, "johndoe")
				So(user["tags"], ShouldResemble, []any{})
			})

			Convey("And it can be read back by id", func() {
				w, out := do(h, http.MethodGet, "/users/1", nil)
				So(w.Code, ShouldEqual, http.StatusOK)
				user := out["user"].(map[string]any)
				So(user["id"], ShouldEqual, float64(1))
				So(user["username"], ShouldEqual, "johndoe")
				So(user["email"], ShouldEqual, "john@example.com")
				So(user["age"], ShouldEqual, float64(30))
			})

			Convey("And creating it again overwrites silently", func() {
				w, _ := do(h, http.MethodPost, "/users", jsonBody(userJSON(1, "janedoe", "jane@example.com", 31)))
				So(w.Code, ShouldEqual, http.StatusOK)
				_, out := do(h, http.MethodGet, "/users/1", nil)
				So(out["user"].(map[string]any)["username"], ShouldEqual, "janedoe")
			})
		})

		Convey("When a well-formed but absent id is requested", func() {
			w, out := do(h, http.MethodGet, "/users/999", nil)

			Convey("Then the not-found body comes with 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["error"], ShouldEqual, "User not found")
			})
		})

		Convey("When the path id is not positive or not an integer", func() {
			for _, id := range []string{"0", "-1", "abc"} {
				w, out := do(h, http.MethodGet, "/users/"+id, nil)
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(locs(out), ShouldResemble, []string{"path.user_id"})
			}
		})

		Convey("When a user body violates every constraint", func() {
			w, out := do(h, http.MethodPost, "/users",
				jsonBody(`{"id":0,"username":"ab","email":"invalid-email","age":10}`))

			Convey("Then every failing field is listed", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(locs(out), ShouldResemble, []string{"body.age", "body.email", "body.id", "body.username"})
				for _, d := range details(out) {
					So(d["msg"], ShouldNotBeEmpty)
					So(d["type"], ShouldNotBeEmpty)
				}
			})
		})

		Convey("When the username has punctuation", func() {
			w, out := do(h, http.MethodPost, "/users", jsonBody(userJSON(2, "john_doe", "john@example.com", 30)))
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(details(out)[0]["type"], ShouldEqual, "value_error")
		})

		Convey("When the username is unicode alphanumeric", func() {
			w, _ := do(h, http.MethodPost, "/users", jsonBody(userJSON(2, "józef", "jozef@example.com", 30)))
			So(w.Code, ShouldEqual, http.StatusOK)
		})

		Convey("When the age is out of bounds", func() {
			for _, age := range []int{12, 121} {
				w, out := do(h, http.MethodPost, "/users", jsonBody(userJSON(3, "johndoe", "john@example.com", age)))
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(locs(out), ShouldResemble, []string{"body.age"})
			}
		})

		Convey("When the body is not JSON", func() {
			w, out := do(h, http.MethodPost, "/users", jsonBody(`{"id":`))
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(details(out)[0]["type"], ShouldEqual, "json_invalid")
		})
	})
}

func TestListUsers(t *testing.T) {
	Convey("Given three users", t, func() {
		h := newHandler()
		do(h, http.MethodPost, "/users", jsonBody(userJSON(1, "alice", "alice@example.com", 20, "admin")))
		do(h, http.MethodPost, "/users", jsonBody(userJSON(2, "bob", "bob@example.com", 30, "dev")))
		do(h, http.MethodPost, "/users", jsonBody(userJSON(3, "carol", "carol@example.com", 40, "dev", "ops")))

		Convey("When listing without parameters", func() {
			_, out := do(h, http.MethodGet, "/users", nil)
			So(usernames(out["users"]), ShouldResemble, []string{"alice", "bob", "carol"})
		})

		Convey("When listing with skip=1&limit=1", func() {
			_, out := do(h, http.MethodGet, "/users?skip=1&limit=1", nil)
			So(usernames(out["users"]), ShouldResemble, []string{"bob"})
		})

		Convey("When skip passes the end", func() {
			_, out := do(h, http.MethodGet, "/users?skip=10", nil)
			So(out["users"], ShouldResemble, []any{})
		})

		Convey("When limit is negative", func() {
			_, out := do(h, http.MethodGet, "/users?limit=-1", nil)

			Convey("Then the end counts from the back", func() {
				So(usernames(out["users"]), ShouldResemble, []string{"alice", "bob"})
			})
		})

		Convey("When filtering by age_min", func() {
			_, out := do(h, http.MethodGet, "/users?age_min=30", nil)
			So(usernames(out["users"]), ShouldResemble, []string{"bob", "carol"})
		})

		Convey("When filtering by any of several tags", func() {
			_, out := do(h, http.MethodGet, "/users?tags=admin&tags=ops", nil)
			So(usernames(out["users"]), ShouldResemble, []string{"alice", "carol"})
		})

		Convey("When an overwritten user keeps its position", func() {
			do(h, http.MethodPost, "/users", jsonBody(userJSON(1, "alicia", "alice@example.com", 21)))
			_, out := do(h, http.MethodGet, "/users", nil)
			So(usernames(out["users"]), ShouldResemble, []string{"alicia", "bob", "carol"})
		})

		Convey("When query parameters are invalid", func() {
			w, out := do(h, http.MethodGet, "/users?skip=-1&limit=101&age_min=0", nil)

			Convey("Then each is reported", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(locs(out), ShouldResemble, []string{"query.age_min", "query.limit", "query.skip"})
			})
		})

		Convey("When the server caps limit lower", func() {
			capped := newHandler(api.WithListLimits(2, 5))
			w, _ := do(capped, http.MethodGet, "/users?limit=6", nil)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			w, _ = do(capped, http.MethodGet, "/users?limit=5", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestUpdateUser(t *testing.T) {
	Convey("Given an existing user", t, func() {
		h := newHandler()
		do(h, http.MethodPost, "/users", jsonBody(userJSON(20, "testuser", "test@example.com", 25)))

		Convey("When updating with a header and cookie", func() {
			w, out := do(h, http.MethodPut, "/users/20",
				jsonBody(userJSON(20, "updateduser", "updated@example.com", 26)),
				func(r *http.Request) {
					r.Header.Set("X-API-Key", "test-key-123")
					r.AddCookie(&http.Cookie{Name: "session_id", Value: "session-456"})
				})

			Convey("Then both are echoed and the user is replaced", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["message"], ShouldEqual, "User updated")
				meta := out["metadata"].(map[string]any)
				So(meta["api_key"], ShouldEqual, "test-key-123")
				So(meta["session_id"], ShouldEqual, "session-456")

				_, got := do(h, http.MethodGet, "/users/20", nil)
				So(got["user"].(map[string]any)["username"], ShouldEqual, "updateduser")
			})
		})

		Convey("When updating without metadata", func() {
			_, out := do(h, http.MethodPut, "/users/20", jsonBody(userJSON(20, "updateduser", "u@example.com", 26)))

			Convey("Then metadata values are null", func() {
				meta := out["metadata"].(map[string]any)
				So(meta, ShouldContainKey, "api_key")
				So(meta["api_key"], ShouldBeNil)
				So(meta["session_id"], ShouldBeNil)
			})
		})

		Convey("When updating an absent id", func() {
			w, out := do(h, http.MethodPut, "/users/21", jsonBody(userJSON(21, "ghost", "g@example.com", 30)))

			Convey("Then not-found is returned and nothing is written", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["error"], ShouldEqual, "User not found")
				_, got := do(h, http.MethodGet, "/users/21", nil)
				So(got["error"], ShouldEqual, "User not found")
			})
		})

		Convey("When the path id is invalid", func() {
			w, out := do(h, http.MethodPut, "/users/0", jsonBody(userJSON(20, "updateduser", "u@example.com", 26)))
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(locs(out), ShouldResemble, []string{"path.user_id"})
		})
	})
}

func TestItems(t *testing.T) {
	Convey("Given an empty API", t, func() {
		h := newHandler()

		Convey("When two items are created from JSON", func() {
			w, first := do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"Laptop","price":1200.0}`))
			_, second := do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"Phone","price":800,"tags":["mobile"]}`))

			Convey("Then ids are assigned in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(first["message"], ShouldEqual, "Item created from JSON")
				item := first["item"].(map[string]any)
				So(item["id"], ShouldEqual, float64(1))
				So(item["description"], ShouldBeNil)
				So(item["tags"], ShouldResemble, []any{})
				So(second["item"].(map[string]any)["id"], ShouldEqual, float64(2))
			})
		})

		Convey("When an item is created from a form", func() {
			form := url.Values{"name": {"Test Item"}, "description": {"A test item"}, "price": {"99.99"}}
			w, out := do(h, http.MethodPost, "/items/form", strings.NewReader(form.Encode()), func(r *http.Request) {
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			})

			Convey("Then the form fields are stored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(out["message"], ShouldEqual, "Item created from form")
				item := out["item"].(map[string]any)
				So(item["id"], ShouldEqual, float64(1))
				So(item["name"], ShouldEqual, "Test Item")
				So(item["description"], ShouldEqual, "A test item")
				So(item["price"], ShouldEqual, 99.99)
			})
		})

		Convey("When the form price is not positive", func() {
			form := url.Values{"name": {"Cheap"}, "price": {"0"}}
			w, out := do(h, http.MethodPost, "/items/form", strings.NewReader(form.Encode()), func(r *http.Request) {
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			})
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(locs(out), ShouldResemble, []string{"form.price"})
		})

		Convey("When the JSON price is negative", func() {
			w, out := do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"Invalid Item","price":-10.0}`))
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(locs(out), ShouldResemble, []string{"body.price"})
		})

		Convey("When the JSON name is missing", func() {
			w, out := do(h, http.MethodPost, "/items/json", jsonBody(`{"price":1}`))
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(details(out)[0]["type"], ShouldEqual, "missing")
		})

		Convey("When the form name is empty", func() {
			w, out := do(h, http.MethodPost, "/items/form", strings.NewReader("name=&price=5"), func(r *http.Request) {
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			})

			Convey("Then it is reported missing and nothing is stored", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(locs(out), ShouldResemble, []string{"form.name"})
				So(details(out)[0]["type"], ShouldEqual, "missing")
				_, found := do(h, http.MethodGet, "/search", nil)
				So(found["results"], ShouldResemble, []any{})
			})
		})

		Convey("When the form description is empty", func() {
			w, out := do(h, http.MethodPost, "/items/form", strings.NewReader("name=x&description=&price=5"), func(r *http.Request) {
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			})

			Convey("Then the description is null", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				item := out["item"].(map[string]any)
				So(item, ShouldContainKey, "description")
				So(item["description"], ShouldBeNil)
			})
		})

		Convey("When the form price is empty", func() {
			w, out := do(h, http.MethodPost, "/items/form", strings.NewReader("name=x&price="), func(r *http.Request) {
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			})
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(locs(out), ShouldResemble, []string{"form.price"})
			So(details(out)[0]["type"], ShouldEqual, "missing")
		})

		Convey("When valid JSON is followed by garbage", func() {
			w, out := do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"a","price":1}garbage`))

			Convey("Then the body is rejected and no item is stored", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(locs(out), ShouldResemble, []string{"body"})
				So(details(out)[0]["type"], ShouldEqual, "json_invalid")
				_, found := do(h, http.MethodGet, "/search", nil)
				So(found["results"], ShouldResemble, []any{})
			})
		})
	})
}

func TestSearch(t *testing.T) {
	Convey("Given three items", t, func() {
		h := newHandler()
		do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"Laptop","price":1200}`))
		do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"Gaming Laptop","price":2500}`))
		do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"Phone","price":800}`))

		names := func(out map[string]any) []string {
			var res []string
			for _, it := range out["results"].([]any) {
				res = append(res, it.(map[string]any)["name"].(string))
			}
			return res
		}

		Convey("When searching case-insensitively with bounds", func() {
			_, out := do(h, http.MethodGet, "/search?q=LAPTOP&price_min=1000&price_max=2000", nil)
			So(names(out), ShouldResemble, []string{"Laptop"})
		})

		Convey("When searching without filters", func() {
			_, out := do(h, http.MethodGet, "/search", nil)
			So(names(out), ShouldResemble, []string{"Laptop", "Gaming Laptop", "Phone"})
		})

		Convey("When nothing matches", func() {
			_, out := do(h, http.MethodGet, "/search?q=tablet", nil)
			So(out["results"], ShouldResemble, []any{})
		})

		Convey("When price_min is zero", func() {
			_, out := do(h, http.MethodGet, "/search?price_min=0", nil)
			So(len(out["results"].([]any)), ShouldEqual, 3)
		})

		Convey("When the query is too long or price_max is zero", func() {
			w, out := do(h, http.MethodGet, "/search?q="+strings.Repeat("a", 51)+"&price_max=0", nil)
			So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			So(locs(out), ShouldResemble, []string{"query.price_max", "query.q"})
		})
	})
}

func TestConcurrentItemCreation(t *testing.T) {
	Convey("Given concurrent item creations over HTTP", t, func() {
		h := newHandler()
		const n = 100

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids []int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, out := do(h, http.MethodPost, "/items/json", jsonBody(`{"name":"x","price":1}`))
				item, ok := out["item"].(map[string]any)
				if !ok {
					return
				}
				mu.Lock()
				ids = append(ids, int(item["id"].(float64)))
				mu.Unlock()
			}()
		}
		wg.Wait()

		Convey("Then ids 1..n are each assigned once", func() {
			sort.Ints(ids)
			So(len(ids), ShouldEqual, n)
			for i, id := range ids {
				So(id, ShouldEqual, i+1)
			}
		})
	})
}

// requestCount reads paramapi_api_http_requests_total for a GET endpoint and status.
func requestCount(endpoint, status string) float64 {
	families, err := metrics.GetRegistry().Gather()
	So(err, ShouldBeNil)
	for _, mf := range families {
		if mf.GetName() != "paramapi_api_http_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["endpoint"] == endpoint && labels["method"] == http.MethodGet && labels["status_code"] == status {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

type panickingDeps struct{}

func (panickingDeps) GetUser(context.Context, int) (model.User, error) { panic("boom") }
func (panickingDeps) ListUsers(context.Context, model.UserFilter) ([]model.User, error) {
	return nil, errors.New("store offline")
}
func (panickingDeps) CreateUser(context.Context, model.User) (model.User, error) {
	return model.User{}, nil
}
func (panickingDeps) UpdateUser(context.Context, int, model.User) (model.User, error) {
	return model.User{}, nil
}
func (panickingDeps) CreateItem(context.Context, model.Item) (model.Item, error) {
	return model.Item{}, nil
}
func (panickingDeps) SearchItems(context.Context, model.ItemQuery) ([]model.Item, error) {
	return nil, nil
}

func TestServerFailures(t *testing.T) {
	Convey("Given dependencies that fail", t, func() {
		h := api.NewServer(panickingDeps{}, nil).Routes(context.Background())

		Convey("When a handler panics", func() {
			before := requestCount("get_user", "500")
			w, out := do(h, http.MethodGet, "/users/1", nil)

			Convey("Then a JSON 500 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
				So(out["detail"], ShouldEqual, "Internal Server Error")
			})

			Convey("And the 500 is counted", func() {
				So(requestCount("get_user", "500")-before, ShouldEqual, 1)
			})
		})

		Convey("When the service returns an unexpected error", func() {
			w, out := do(h, http.MethodGet, "/users", nil)
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(out["detail"], ShouldEqual, "Internal Server Error")
		})

		Convey("When stats has no provider", func() {
			w, _ := do(h, http.MethodGet, "/stats", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
		})
	})
}
