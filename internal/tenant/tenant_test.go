package tenant

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testShops() []Shop {
	return []Shop{
		{ID: "totes", Name: "Tote Co", Hosts: []string{"totes.example.com"}, OrderPrefix: "TC", AdminKey: "totes-admin-key-0001"},
		{ID: "bags", Name: "Bag Shop", Hosts: []string{"Bags.Example.com"}, OrderPrefix: "BS", AdminKey: "bags-admin-key-0002"},
		{ID: "quiet", Name: "No Admin", Hosts: []string{"quiet.example.com"}, OrderPrefix: "QU"},
	}
}

func TestResolve_ClaimWins(t *testing.T) {
	r := NewResolver(testShops(), "")

	id, err := r.Resolve(Principal{
		Claims: map[string]string{ClaimTenantID: "bags"},
		Host:   "totes.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, ID("bags"), id)
}

func TestResolve_UnknownClaimRejected(t *testing.T) {
	r := NewResolver(testShops(), "totes")

	_, err := r.Resolve(Principal{Claims: map[string]string{ClaimTenantID: "nobody"}})
	assert.True(t, errors.Is(err, ErrUnresolved))
}

func TestResolve_HostMatchIgnoresCaseAndPort(t *testing.T) {
	r := NewResolver(testShops(), "")

	id, err := r.Resolve(Principal{Host: "bags.example.com:8080"})
	require.NoError(t, err)
	assert.Equal(t, ID("bags"), id)
}

func TestResolve_Fallback(t *testing.T) {
	r := NewResolver(testShops(), "totes")

	id, err := r.Resolve(Principal{Host: "localhost:8080"})
	require.NoError(t, err)
	assert.Equal(t, ID("totes"), id)
}

func TestResolve_NothingToGoOn(t *testing.T) {
	r := NewResolver(testShops(), "")

	_, err := r.Resolve(Principal{Host: "unknown.example.com"})
	assert.ErrorIs(t, err, ErrUnresolved)
}

func TestResolve_NoShopsConfiguredAcceptsAnyClaim(t *testing.T) {
	r := NewResolver(nil, "")

	id, err := r.Resolve(Principal{Claims: map[string]string{ClaimTenantID: "anything"}})
	require.NoError(t, err)
	assert.Equal(t, ID("anything"), id)
}

func TestMiddleware_StoresTenant(t *testing.T) {
	var got ID
	h := Middleware(NewResolver(testShops(), "", WithGatewayKey("gw-secret")))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "http://bags.example.com/api/products", nil)
	req.Header.Set(HeaderTenantID, "totes")
	req.Header.Set(HeaderGatewayKey, "gw-secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, ID("totes"), got)
}

func TestMiddleware_IgnoresUntrustedClaim(t *testing.T) {
	cases := map[string]*Resolver{
		"wrong gateway key": NewResolver(testShops(), "", WithGatewayKey("gw-secret")),
		"no gateway":        NewResolver(testShops(), ""),
	}
	for name, res := range cases {
		t.Run(name, func(t *testing.T) {
			var got ID
			h := Middleware(res)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = FromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "http://bags.example.com/api/products", nil)
			req.Header.Set(HeaderTenantID, "totes")
			req.Header.Set(HeaderGatewayKey, "guess")
			h.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, ID("bags"), got)
		})
	}
}

func TestResolver_ByAdminKey(t *testing.T) {
	r := NewResolver(testShops(), "")

	id, ok := r.ByAdminKey("bags-admin-key-0002")
	require.True(t, ok)
	assert.Equal(t, ID("bags"), id)

	for _, key := range []string{"", "nope", "bags-admin-key-000"} {
		_, ok := r.ByAdminKey(key)
		assert.False(t, ok, key)
	}
}

func TestShop_ServesHost(t *testing.T) {
	s := testShops()[1]
	assert.True(t, s.ServesHost("bags.example.com"))
	assert.True(t, s.ServesHost("BAGS.example.com:443"))
	assert.False(t, s.ServesHost("bags.example.com.evil.test"))
}

func TestMiddleware_RejectsUnresolved(t *testing.T) {
	called := false
	h := Middleware(NewResolver(testShops(), ""))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "http://elsewhere.example.com/api/products", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, called)
}
