package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"expense/transaction"
)

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, healthMessage)
}

func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while creating transaction")
		return
	}

	t, err := s.Service.Create(r.Context(), fields)
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while creating transaction")
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

func (s *server) handleList(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r.URL.Query())
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while fetching transactions")
		return
	}

	transactions, err := s.Service.List(r.Context(), opts)
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while fetching transactions")
		return
	}

	respondJSON(w, http.StatusOK, transactions)
}

func (s *server) handleGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.Service.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while fetching transaction")
		return
	}

	respondJSON(w, http.StatusOK, t)
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while updating transaction")
		return
	}

	t, err := s.Service.Update(r.Context(), mux.Vars(r)["id"], fields)
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while updating transaction")
		return
	}

	respondJSON(w, http.StatusOK, t)
}

func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	_, err := s.Service.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithServiceError(w, r, err, "Server error while deleting transaction")
		return
	}

	respondJSON(w, http.StatusOK, MessageResponse{Message: "Transaction deleted successfully"})
}

func readFields(w http.ResponseWriter, r *http.Request) (transaction.Fields, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return transaction.Fields{}, transaction.ErrInvalidJSON
		}
		return transaction.Fields{}, fmt.Errorf("reading request body: %w", err)
	}
	return transaction.DecodeFields(body)
}
