package scan

import "time"

type Status struct {
	LastRunAt    string `json:"last_run_at"`
	LastOkAt     string `json:"last_ok_at"`
	LastError    string `json:"last_error"`
	LastDetected int    `json:"last_detected"`
	LastRows     int    `json:"last_rows"`
	Running      bool   `json:"running"`
}

func (s *Scanner) Status() Status {
	return s.status.Load().(Status)
}

// Running reports whether at least one scan is in progress.
func (s *Scanner) Running() bool {
	return s.active.Load() > 0
}

func (s *Scanner) begin() {
	s.active.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status.Load().(Status)
	st.Running = true
	st.LastRunAt = s.d.Now().Format(time.RFC3339)
	s.status.Store(st)
}

func (s *Scanner) end(rep Report, err error) {
	n := s.active.Add(-1)
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status.Load().(Status)
	st.Running = n > 0
	st.LastRows = rep.Rows
	st.LastDetected = rep.Detected
	switch {
	case err != nil:
		st.LastError = err.Error()
	case rep.Failed == 0:
		st.LastError = ""
		st.LastOkAt = s.d.Now().Format(time.RFC3339)
	}
	s.status.Store(st)
}

func (s *Scanner) setRowError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status.Load().(Status)
	st.LastError = err.Error()
	s.status.Store(st)
}
