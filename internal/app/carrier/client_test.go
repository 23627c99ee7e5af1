package carrier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(steps []StepDescriptor) []StepKind {
	out := make([]StepKind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func TestSimulator_FullFlow(t *testing.T) {
	ctx := context.Background()
	c := New(Config{SimulationMode: true})
	require.True(t, c.Simulated())
	require.True(t, c.HealthCheck(ctx))

	products, err := c.ListProducts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, products)

	docs, err := c.SaleDocuments(ctx, products[0].ID)
	require.NoError(t, err)
	assert.Len(t, docs, 4)

	cart, err := c.CreateCart(ctx, CartRequest{ProductID: "sante-particuliers", FormulaID: "F-PREM", WithFuneral: true, WithCancellation: true})
	require.NoError(t, err)
	assert.Contains(t, cart.LeadID, "SIM-LEAD-")

	sub, err := c.CreateSubscription(ctx, SubscriptionRequest{LeadID: cart.LeadID, Email: "a@b.fr", LastName: "Martin"})
	require.NoError(t, err)
	assert.Equal(t, []StepKind{StepConcern, StepBank, StepFuneral, StepCancellation, StepDocuments}, kinds(sub.Steps))
	assert.Len(t, sub.ContractIDs, 2)

	res, err := c.SubmitConcern(ctx, sub.SubscriptionID, ConcernRequest{LastName: "Martin"})
	require.NoError(t, err)
	assert.Equal(t, StepConcern, res.Step)

	_, err = c.SubmitBank(ctx, sub.SubscriptionID, BankRequest{IBAN: "FR7630006000011234567890189"})
	require.NoError(t, err)
	_, err = c.SubmitFuneral(ctx, sub.SubscriptionID, FuneralRequest{Beneficiary: "Marie Martin"})
	require.NoError(t, err)
	_, err = c.SubmitCancellation(ctx, sub.SubscriptionID, CancellationRequest{PreviousInsurer: "MGEN"})
	require.NoError(t, err)

	state, err := c.GetSubscriptionState(ctx, sub.SubscriptionID)
	require.NoError(t, err)
	assert.Equal(t, kinds(sub.Steps), kinds(state.Steps))
	assert.Equal(t, sub.ContractIDs, state.ContractIDs)

	up, err := c.UploadDocument(ctx, sub.SubscriptionID, DocumentUpload{Type: "mandat_sepa", Filename: "sepa.pdf", Content: "JVBERi0="})
	require.NoError(t, err)
	assert.Equal(t, "mandat_sepa", up.Type)

	for _, id := range state.ContractIDs {
		v, err := c.ValidateContract(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "validated", v.Status)
	}
}

func TestSimulator_StepsWithoutOptionalSteps(t *testing.T) {
	ctx := context.Background()
	c := New(Config{SimulationMode: true})

	cart, err := c.CreateCart(ctx, CartRequest{ProductID: "sante-particuliers", FormulaID: "F-ESS"})
	require.NoError(t, err)
	sub, err := c.CreateSubscription(ctx, SubscriptionRequest{LeadID: cart.LeadID})
	require.NoError(t, err)

	assert.Equal(t, []StepKind{StepConcern, StepBank, StepDocuments}, kinds(sub.Steps))
	assert.Len(t, sub.ContractIDs, 1)
}

func TestSimulator_RejectsIncompleteStep(t *testing.T) {
	ctx := context.Background()
	c := New(Config{SimulationMode: true})

	_, err := c.SubmitBank(ctx, "SIM-SUB-abc", BankRequest{})
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "iban is required", apiErr.Message)
}

func TestClient_BearerTokenAndCache(t *testing.T) {
	var authCalls, productCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/token":
			authCalls.Add(1)
			var req tokenRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.Username != "broker" || req.Password != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "tok-1", ExpiresIn: 3600})
		case "/products":
			productCalls.Add(1)
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(productsResponse{Products: []Product{{ID: "p1", Name: "Santé"}}})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Username: "broker", Password: "secret", Timeout: time.Second})

	for i := 0; i < 3; i++ {
		products, err := c.ListProducts(context.Background())
		require.NoError(t, err)
		require.Len(t, products, 1)
	}

	assert.Equal(t, int32(1), authCalls.Load(), "token is reused while valid")
	assert.Equal(t, int32(1), productCalls.Load(), "products are served from cache")
}

func TestClient_HealthCheckFalseOnBadCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	assert.False(t, c.HealthCheck(context.Background()))

	_, err := c.ListProducts(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "bad credentials", apiErr.Message)
}

func TestClient_RejectsUnknownStepKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token" {
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "t", ExpiresIn: 60})
			return
		}
		_, _ = w.Write([]byte(`{"subscription_id":"S1","steps":[{"kind":"concern"},{"kind":"stepmystery"}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.GetSubscriptionState(context.Background(), "S1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stepmystery")
}

func TestClient_PlainTextErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token" {
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "t", ExpiresIn: 60})
			return
		}
		http.Error(w, "gateway down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.CreateCart(context.Background(), CartRequest{ProductID: "p"})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "gateway down", apiErr.Message)
}

func TestClient_TransportErrors(t *testing.T) {
	// Порт закрыт: соединение отклоняется
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	c := New(Config{BaseURL: closedURL, Timeout: time.Second})
	_, err := c.ListProducts(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "POST /auth/token")

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token" {
			_ = json.NewEncoder(w).Encode(tokenResponse{AccessToken: "t", ExpiresIn: 60})
			return
		}
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer garbage.Close()

	c = New(Config{BaseURL: garbage.URL})
	_, err = c.ListProducts(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
	assert.Contains(t, err.Error(), "decode")
}
