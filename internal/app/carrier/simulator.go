package carrier

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const simulatedBaseURL = "http://carrier.simulated/v1"

// Simulator подменяет API страховщика. Состояния на своей стороне не хранит:
// каждый ответ строится только из пути и тела запроса, аутентификация игнорируется.
type Simulator struct {
	mux *http.ServeMux
}

func NewSimulator() *Simulator {
	s := &Simulator{mux: http.NewServeMux()}

	s.mux.HandleFunc("POST /v1/auth/token", s.token)
	s.mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.HandleFunc("GET /v1/products", s.listProducts)
	s.mux.HandleFunc("GET /v1/products/{id}/documents", s.saleDocuments)
	s.mux.HandleFunc("POST /v1/cart", s.createCart)
	s.mux.HandleFunc("POST /v1/subscriptions", s.createSubscription)
	s.mux.HandleFunc("GET /v1/subscriptions/{id}", s.subscriptionState)
	s.mux.HandleFunc("PUT /v1/subscriptions/{id}/steps/{kind}", s.submitStep)
	s.mux.HandleFunc("POST /v1/subscriptions/{id}/documents", s.uploadDocument)
	s.mux.HandleFunc("POST /v1/contracts/{id}/validate", s.validateContract)

	return s
}

// RoundTrip обслуживает запрос в памяти процесса
func (s *Simulator) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := &recorder{header: make(http.Header), status: http.StatusOK}
	s.mux.ServeHTTP(rec, req)

	return &http.Response{
		StatusCode:    rec.status,
		Status:        http.StatusText(rec.status),
		Header:        rec.header,
		Body:          io.NopCloser(bytes.NewReader(rec.body.Bytes())),
		ContentLength: int64(rec.body.Len()),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}, nil
}

func (s *Simulator) token(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: "simulated-" + uuid.NewString(), ExpiresIn: 3600})
}

var simulatedProducts = []Product{
	{
		ID:   "sante-particuliers",
		Name: "Santé Particuliers",
		Type: "sante",
		Formulas: []Formula{
			{ID: "F-ESS", Name: "Essentielle"},
			{ID: "F-CONF", Name: "Confort"},
			{ID: "F-PREM", Name: "Premium"},
		},
	},
	{
		ID:       "obseques",
		Name:     "Assistance Obsèques",
		Type:     "obseques",
		Formulas: []Formula{{ID: "F-OBS", Name: "Obsèques"}},
	},
}

func (s *Simulator) listProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, productsResponse{Products: simulatedProducts})
}

func (s *Simulator) saleDocuments(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	for _, p := range simulatedProducts {
		if p.ID != productID {
			continue
		}
		base := "https://documents.carrier.simulated/" + productID
		writeJSON(w, http.StatusOK, documentsResponse{Documents: []SaleDocument{
			{Type: "bulletin_adhesion", Name: "Bulletin d'adhésion", URL: base + "/bulletin.pdf", Required: true},
			{Type: "mandat_sepa", Name: "Mandat SEPA", URL: base + "/sepa.pdf", Required: true},
			{Type: "mandat_resiliation", Name: "Mandat de résiliation", URL: base + "/resiliation.pdf"},
			{Type: "documents_preremplis", Name: "Documents pré-remplis", URL: base + "/preremplis.pdf"},
		}})
		return
	}
	writeError(w, http.StatusNotFound, "product not found")
}

func (s *Simulator) createCart(w http.ResponseWriter, r *http.Request) {
	var req CartRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ProductID == "" || req.FormulaID == "" {
		writeError(w, http.StatusUnprocessableEntity, "product_id and formula_id are required")
		return
	}

	writeJSON(w, http.StatusOK, Cart{
		LeadID:    "SIM-LEAD-" + shortID() + encodeFlags(req.WithFuneral, req.WithCancellation),
		ProductID: req.ProductID,
		FormulaID: req.FormulaID,
	})
}

func (s *Simulator) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req SubscriptionRequest
	if !decode(w, r, &req) {
		return
	}
	if !strings.HasPrefix(req.LeadID, "SIM-LEAD-") {
		writeError(w, http.StatusUnprocessableEntity, "unknown lead")
		return
	}

	funeral, cancellation := decodeFlags(req.LeadID)
	subID := "SIM-SUB-" + shortID() + encodeFlags(funeral, cancellation)

	writeJSON(w, http.StatusOK, Subscription{
		SubscriptionID: subID,
		LeadID:         req.LeadID,
		ContractIDs:    contractIDs(subID, funeral),
		Steps:          declaredSteps(funeral, cancellation),
	})
}

func (s *Simulator) subscriptionState(w http.ResponseWriter, r *http.Request) {
	subID := r.PathValue("id")
	if !strings.HasPrefix(subID, "SIM-SUB-") {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	funeral, cancellation := decodeFlags(subID)

	writeJSON(w, http.StatusOK, SubscriptionState{
		SubscriptionID: subID,
		Status:         "in_progress",
		Steps:          declaredSteps(funeral, cancellation),
		ContractIDs:    contractIDs(subID, funeral),
	})
}

func (s *Simulator) submitStep(w http.ResponseWriter, r *http.Request) {
	kind := StepKind(r.PathValue("kind"))

	var missing string
	switch kind {
	case StepConcern:
		var req ConcernRequest
		if !decode(w, r, &req) {
			return
		}
		if req.LastName == "" {
			missing = "last_name"
		}
	case StepBank:
		var req BankRequest
		if !decode(w, r, &req) {
			return
		}
		if req.IBAN == "" {
			missing = "iban"
		}
	case StepFuneral:
		var req FuneralRequest
		if !decode(w, r, &req) {
			return
		}
	case StepCancellation:
		var req CancellationRequest
		if !decode(w, r, &req) {
			return
		}
		if req.PreviousInsurer == "" {
			missing = "previous_insurer"
		}
	default:
		writeError(w, http.StatusNotFound, "unknown step "+string(kind))
		return
	}

	if missing != "" {
		writeError(w, http.StatusUnprocessableEntity, missing+" is required")
		return
	}
	writeJSON(w, http.StatusOK, StepResult{Accepted: true, Step: kind})
}

func (s *Simulator) uploadDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentUpload
	if !decode(w, r, &req) {
		return
	}
	if req.Type == "" || req.Content == "" {
		writeError(w, http.StatusUnprocessableEntity, "type and content are required")
		return
	}
	writeJSON(w, http.StatusOK, UploadedDocument{DocumentID: "SIM-DOC-" + shortID(), Type: req.Type})
}

func (s *Simulator) validateContract(w http.ResponseWriter, r *http.Request) {
	contractID := r.PathValue("id")
	if !strings.HasPrefix(contractID, "SIM-CTR-") {
		writeError(w, http.StatusNotFound, "contract not found")
		return
	}
	writeJSON(w, http.StatusOK, ContractValidation{ContractID: contractID, Status: "validated"})
}

// declaredSteps шаги оформления в порядке, в котором их объявляет страховщик
func declaredSteps(funeral, cancellation bool) []StepDescriptor {
	steps := []StepDescriptor{{Kind: StepConcern}, {Kind: StepBank}}
	if funeral {
		steps = append(steps, StepDescriptor{Kind: StepFuneral})
	}
	if cancellation {
		steps = append(steps, StepDescriptor{Kind: StepCancellation})
	}
	return append(steps, StepDescriptor{Kind: StepDocuments})
}

func contractIDs(subID string, funeral bool) []string {
	id, _, _ := strings.Cut(strings.TrimPrefix(subID, "SIM-SUB-"), ".")
	ids := []string{"SIM-CTR-" + id + "-1"}
	if funeral {
		ids = append(ids, "SIM-CTR-"+id+"-2")
	}
	return ids
}

// Флаги шагов зашиты в суффикс идентификатора: ".f", ".c", ".fc"
func encodeFlags(funeral, cancellation bool) string {
	var flags string
	if funeral {
		flags += "f"
	}
	if cancellation {
		flags += "c"
	}
	if flags == "" {
		return ""
	}
	return "." + flags
}

func decodeFlags(id string) (funeral, cancellation bool) {
	_, flags, ok := strings.Cut(id, ".")
	if !ok {
		return false, false
	}
	return strings.Contains(flags, "f"), strings.Contains(flags, "c")
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "empty body")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIError{Message: message})
}

// recorder минимальный http.ResponseWriter для RoundTrip
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.wrote {
		return
	}
	r.status = status
	r.wrote = true
}

func (r *recorder) Write(p []byte) (int, error) {
	if !r.wrote {
		r.WriteHeader(http.StatusOK)
	}
	return r.body.Write(p)
}
