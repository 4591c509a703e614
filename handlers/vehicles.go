package handlers

import (
	"net/http"
	"strings"

	"fleetdash/i18n"
	"fleetdash/models"
)

type vehicleInput struct {
	Brand    string `json:"brand"`
	Type     string `json:"type"`
	Color    string `json:"color"`
	Model    string `json:"model"`
	Plates   string `json:"plates"`
	Location string `json:"location"`
	Engine   string `json:"engine"`
	Serial   string `json:"serial"`
	Eco      string `json:"eco"`
	Contract string `json:"contract"`
	Status   string `json:"status"`
	Agency   string `json:"agency"`
	Project  string `json:"project"`
}

func (in vehicleInput) vehicle() (*models.Vehicle, error) {
	v := &models.Vehicle{
		Brand:    strings.TrimSpace(in.Brand),
		Type:     strings.TrimSpace(in.Type),
		Color:    strings.TrimSpace(in.Color),
		Model:    strings.TrimSpace(in.Model),
		Plates:   strings.TrimSpace(in.Plates),
		Location: strings.TrimSpace(in.Location),
		Engine:   strings.TrimSpace(in.Engine),
		Serial:   strings.TrimSpace(in.Serial),
		Eco:      strings.TrimSpace(in.Eco),
		Contract: strings.TrimSpace(in.Contract),
		Status:   strings.TrimSpace(in.Status),
		Agency:   strings.TrimSpace(in.Agency),
		Project:  strings.TrimSpace(in.Project),
	}
	if v.Brand == "" || v.Plates == "" || v.Serial == "" {
		return nil, validationError{key: "MissingVehicleFields"}
	}
	return v, nil
}

func (s *Server) APIListVehiclesHandler(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.store.ListVehicles(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, vehicles)
}

func (s *Server) APIGetVehicleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	v, err := s.store.GetVehicle(r.Context(), id)
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, v)
}

func (s *Server) APICreateVehicleHandler(w http.ResponseWriter, r *http.Request) {
	var in vehicleInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	v, err := in.vehicle()
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	if v, err = s.store.CreateVehicle(r.Context(), v); err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	sendSuccess(w, http.StatusCreated, v)
}

func (s *Server) APIUpdateVehicleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	var in vehicleInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	v, err := in.vehicle()
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	v.ID = id
	if err := s.store.UpdateVehicle(r.Context(), v); err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	if v, err = s.store.GetVehicle(r.Context(), id); err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	sendSuccess(w, http.StatusOK, v)
}

// APIDeleteVehicleHandler refuses with 409 while expenses reference the
// vehicle.
func (s *Server) APIDeleteVehicleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	if err := s.store.DeleteVehicle(r.Context(), id); err != nil {
		s.sendError(w, r, err, "VehicleNotFound")
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(i18n.DetectLanguage(r), "VehicleDeleted")})
}
