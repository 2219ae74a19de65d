package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coletores/database"
)

func TestInstitutionValidator(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(resultsPage))
	}))
	defer ts.Close()

	client := NewClient(600, time.Minute)
	client.httpClient = ts.Client()
	client.httpClient.Transport = rewriteTransport{base: ts.Client().Transport, target: ts.URL}

	validator := NewInstitutionValidator(client)

	entities := []*database.CanonicalEntity{
		{CanonicalName: "EMBRAPA", EntityType: database.EntityEmpresa},
		{CanonicalName: "Forzza, R.C.", EntityType: database.EntityPessoa},
	}

	verifications := validator.Verify(context.Background(), entities)
	if len(verifications) != 1 {
		t.Fatalf("got %d verifications, want 1 (only Empresa entities)", len(verifications))
	}
	if !verifications[0].Verified {
		t.Errorf("EMBRAPA should verify against %+v", verifications[0])
	}
	if verifications[0].Evidence == "" {
		t.Error("verification should carry evidence")
	}
}
