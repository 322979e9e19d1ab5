package blisp

type halDebug struct {
	id   string
	l    Logger
	next HAL
}

func (h *halDebug) Read(p []byte) (int, error) {
	n, err := h.next.Read(p)
	h.l.Printf("%5s <<  recv %d %+v", h.id, n, err)
	if n > 0 {
		h.l.Printf("%s", hexDump(p[:n]))
	}
	return n, err
}

func (h *halDebug) Write(p []byte) (int, error) {
	h.l.Printf("%5s >>  send %d %s", h.id, len(p), shortHex{p, 32})
	n, err := h.next.Write(p)
	h.l.Printf("%5s <<  send %d %+v", h.id, n, err)
	return n, err
}

func (h *halDebug) SetBootLine(active bool) error {
	h.l.Printf("%5s >>  boot %t", h.id, active)
	err := h.next.SetBootLine(active)
	h.l.Printf("%5s <<  boot %#v", h.id, err)
	return err
}

func (h *halDebug) SetResetLine(active bool) error {
	h.l.Printf("%5s >>  reset %t", h.id, active)
	err := h.next.SetResetLine(active)
	h.l.Printf("%5s <<  reset %#v", h.id, err)
	return err
}
