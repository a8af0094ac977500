package generichttp_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/tekgen/generichttp"
)

func ExampleSubMuxSanitize() {
	fmt.Println(generichttp.SubMuxSanitize("lab/afg/*"))
	// Output: /lab/afg
}

func TestSubMuxSanitize(t *testing.T) {
	for in, want := range map[string]string{
		"lab/afg":    "/lab/afg",
		"/lab/afg/":  "/lab/afg",
		"/lab/afg/*": "/lab/afg",
	} {
		if got := generichttp.SubMuxSanitize(in); got != want {
			t.Errorf("%s: expected %s got %s", in, want, got)
		}
	}
}

func TestEndpointsAndBind(t *testing.T) {
	var got float64
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/frequency"}: generichttp.GetFloat(func() (float64, error) { return 10, nil }, generichttp.InternalError),
		{Method: http.MethodPost, Path: "/frequency"}: generichttp.SetFloat(func(f float64) error {
			got = f
			return nil
		}, generichttp.InternalError),
		{Method: http.MethodGet, Path: "/broken"}: generichttp.GetBool(func() (bool, error) {
			return false, errors.New("no")
		}, func(error) int { return http.StatusTeapot }),
	}
	eps := rt.Endpoints()
	if strings.Join(eps, ",") != "/broken,/frequency" {
		t.Errorf("expected [/broken /frequency] got %v", eps)
	}
	r := chi.NewRouter()
	rt.Bind(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/frequency", strings.NewReader(`{"f64": 2.5}`)))
	if w.Code != http.StatusOK || got != 2.5 {
		t.Errorf("expected 200 and 2.5 got %d and %v", w.Code, got)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/frequency", nil))
	if strings.TrimSpace(w.Body.String()) != `{"f64":10}` {
		t.Errorf("expected {\"f64\":10} got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/broken", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("expected the status func to choose the code, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/frequency", strings.NewReader(`{`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad body got %d", w.Code)
	}
}
