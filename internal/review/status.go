package review

// Status is the controller state published to the control surfaces.
type Status struct {
	SessionID  string   `json:"session_id,omitempty" msgpack:"session_id,omitempty"`
	Department string   `json:"department" msgpack:"department"`
	Mode       string   `json:"mode" msgpack:"mode"`
	Playing    bool     `json:"playing" msgpack:"playing"`
	Paused     bool     `json:"paused" msgpack:"paused"`
	Loop       bool     `json:"loop" msgpack:"loop"`
	Index      int      `json:"index" msgpack:"index"`
	Total      int      `json:"total" msgpack:"total"`
	FPS        float64  `json:"fps" msgpack:"fps"`
	Shot       string   `json:"shot,omitempty" msgpack:"shot,omitempty"`
	ShotFrame  int      `json:"shot_frame,omitempty" msgpack:"shot_frame,omitempty"`
	Resume     int      `json:"resume" msgpack:"resume"`
	Pending    []string `json:"pending_commands,omitempty" msgpack:"pending_commands,omitempty"`

	Last *SessionSummary `json:"last_session,omitempty" msgpack:"last_session,omitempty"`
}

// SessionSummary summarizes the most recent finished session.
type SessionSummary struct {
	ID         string  `json:"id" msgpack:"id"`
	Reason     string  `json:"reason" msgpack:"reason"`
	AverageFPS float64 `json:"average_fps" msgpack:"average_fps"`
	Available  bool    `json:"average_available" msgpack:"average_available"`
	Underrun   bool    `json:"underrun" msgpack:"underrun"`
	Delivered  int     `json:"delivered" msgpack:"delivered"`
	Skipped    int     `json:"skipped" msgpack:"skipped"`
	Error      string  `json:"error,omitempty" msgpack:"error,omitempty"`
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		Department: c.department,
		Mode:       c.mode.String(),
		Playing:    c.playing,
		Paused:     c.playing && c.transport.Paused(),
		Loop:       c.loop,
		Index:      c.frame.index,
		Total:      c.frame.total,
		FPS:        c.frame.fps,
		Resume:     c.resume,
	}
	for _, cmd := range c.commands.Pending() {
		st.Pending = append(st.Pending, cmd.String())
	}
	if c.playing {
		st.SessionID = c.sessionID
	}
	if s, frame, ok := c.playlist.Locate(c.frame.index); ok {
		st.Shot = s.ID
		st.ShotFrame = frame
	}
	if c.last != nil {
		l := &SessionSummary{
			ID:         c.last.ID,
			Reason:     string(c.last.Report.Reason),
			AverageFPS: c.last.Report.AverageFPS,
			Available:  c.last.Report.FPSAvailable,
			Underrun:   c.last.Report.Underrun,
			Delivered:  c.last.Report.Delivered,
			Skipped:    c.last.Report.Skipped,
		}
		if c.last.Err != nil {
			l.Error = c.last.Err.Error()
		}
		st.Last = l
	}
	return st
}

// LastSession returns the most recent finished session, if any.
func (c *Controller) LastSession() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Session{}, false
	}
	return *c.last, true
}
