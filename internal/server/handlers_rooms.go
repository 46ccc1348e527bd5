package server

import (
	"net/http"
	"strconv"

	"fitroom/internal/preview"
	"fitroom/internal/registry"
	"fitroom/internal/room"
)

// actionRequest is a room action plus the optional catalog item it refers
// to and a client correlation id echoed in WebSocket results.
type actionRequest struct {
	room.Action
	Item string `json:"item,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

type actionResponse struct {
	Result   room.Result   `json:"result"`
	Snapshot room.Snapshot `json:"snapshot"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Create()
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusCreated, rm.Snapshot())
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, rm.Snapshot())
}

func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.rooms.Close(r.PathValue("id")); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, nil)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	var req actionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	res, err := s.dispatch(r, rm, req)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	writeSuccess(w, r, http.StatusOK, actionResponse{Result: res, Snapshot: rm.Snapshot()})
}

func (s *Server) dispatch(r *http.Request, rm *room.Room, req actionRequest) (room.Result, error) {
	if err := s.resolveItem(&req); err != nil {
		return room.Result{}, err
	}
	return rm.Dispatch(r.Context(), req.Action)
}

// resolveItem fills a loadWearable action from the catalog entry it names.
// Explicit url, name and transform take precedence.
func (s *Server) resolveItem(req *actionRequest) error {
	if req.Item == "" || req.Action.Action != "loadWearable" {
		return nil
	}
	item, err := s.catalog.Get(req.Item)
	if err != nil {
		return err
	}
	if req.URL == "" {
		req.URL = item.URL
	}
	if req.Name == "" {
		req.Name = item.Name
	}
	if req.Transform == nil {
		req.Transform = &registry.Transform{Position: item.Position, Rotation: item.Rotation}
	}
	return nil
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	opts, err := s.previewOptions(r)
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	data, err := preview.WebPBytes(rm.Preview(opts))
	if err != nil {
		writeError(w, r, err, s.logger)
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// previewOptions applies ?size=, ?yaw= and ?pitch= to the configured
// preview settings.
func (s *Server) previewOptions(r *http.Request) (preview.Options, error) {
	opts := s.cfg.Preview
	q := r.URL.Query()
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > 1024 {
			return opts, badParam("size", v)
		}
		opts.Width, opts.Height = n, n
	}
	for name, dst := range map[string]*float64{"yaw": &opts.Yaw, "pitch": &opts.Pitch} {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return opts, badParam(name, v)
			}
			*dst = f
		}
	}
	return opts, nil
}
