package apperr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_StatusByCode(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{Validation, http.StatusBadRequest},
		{Auth, http.StatusUnauthorized},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{DbError, http.StatusInternalServerError},
		{NoRefreshToken, http.StatusUnprocessableEntity},
		{SendTransient, http.StatusBadGateway},
		{SendPermanent, http.StatusUnprocessableEntity},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		e := New(c.code, "detail")
		if e.Status != c.want {
			t.Errorf("New(%s).Status = %d, want %d", c.code, e.Status, c.want)
		}
	}
}

func TestError_WriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	New(Validation, "sequence_id is required").WriteJSON(w)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var got struct {
		Ok     bool   `json:"ok"`
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Ok || got.Error != "validation" || got.Detail != "sequence_id is required" {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestWriteJsonOk(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJsonOk(w, http.StatusOK)

	var got struct {
		Ok bool `json:"ok"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Ok {
		t.Fatal("expected ok:true")
	}
}

func TestWriteJsonWithData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJsonWithData(w, http.StatusCreated, map[string]string{"id": "abc"})

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var got struct {
		Ok   bool              `json:"ok"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Ok || got.Data["id"] != "abc" {
		t.Fatalf("unexpected body: %+v", got)
	}
}
