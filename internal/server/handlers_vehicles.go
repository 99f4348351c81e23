package server

import (
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"autoeden/internal/app"
	"autoeden/pkg/domain"
)

func allowedImageExt(filename string) bool {
	switch strings.ToLower(path.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

func (s *Server) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	payload, err := s.app.Marketplace(r.Context(), r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleVehicleDetail(w http.ResponseWriter, r *http.Request) {
	vehicle, err := s.app.GetVehicleDetail(r.Context(), s.optionalUser(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.VehicleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	vehicle, err := s.app.CreateVehicle(r.Context(), user, input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, vehicle)
}

func (s *Server) handleUpdateVehicle(w http.ResponseWriter, r *http.Request, user domain.User) {
	var input app.VehicleInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	vehicle, err := s.app.UpdateVehicle(r.Context(), user, r.PathValue("id"), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteVehicle(r.Context(), user, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMyVehicles(w http.ResponseWriter, r *http.Request, user domain.User) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	vehicles, total, err := s.app.ListMyVehicles(r.Context(), user.ID, page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vehicles": vehicles,
		"total":    total,
	})
}

func (s *Server) handleAddImage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, r, domain.FieldErrors{"image": "multipart form required"})
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, r, domain.FieldErrors{"image": "image file is required"})
		return
	}
	defer file.Close()

	if !allowedImageExt(header.Filename) {
		writeError(w, r, domain.FieldErrors{"image": "image must be a jpg, jpeg, png, gif or webp file"})
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if int64(len(data)) > s.maxUploadBytes {
		writeError(w, r, domain.FieldErrors{"image": "image exceeds the upload size limit"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	img, err := s.app.AddVehicleImage(r.Context(), user, r.PathValue("id"), header.Filename, contentType, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request, user domain.User) {
	if err := s.app.DeleteVehicleImage(r.Context(), user, r.PathValue("id"), r.PathValue("imageID")); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
