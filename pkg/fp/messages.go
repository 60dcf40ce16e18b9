package fp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/clms"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/mqtt"
	"github.com/dbehnke/dect-nwk/pkg/peer"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
	"github.com/dbehnke/dect-nwk/pkg/ss"
)

// ErrBadCommand is returned for a command payload that does not decode
var ErrBadCommand = errors.New("fp: malformed command")

// SendCommand is the payload of the clms/send command topic
type SendCommand struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// DialCommand is the payload of the calls/dial command topic
type DialCommand struct {
	To string `json:"to"`
}

// HangUpCommand is the payload of the calls/hangup command topic
type HangUpCommand struct {
	ID uint64 `json:"id"`
}

func (a *App) registerCommands() {
	a.pub.HandleCommand("clms/send", a.sendCommand)
	a.pub.HandleCommand("calls/dial", a.dialCommand)
	a.pub.HandleCommand("calls/hangup", a.hangUpCommand)
}

// messageText picks the readable part of a message: user data first,
// then display text, then keypad digits
func messageText(iwu *sfmt.IWUToIWU, display *sfmt.Display, keypad *sfmt.Keypad) string {
	switch {
	case iwu != nil && len(iwu.Data) > 0:
		return string(iwu.Data)
	case display != nil:
		return string(display.Text)
	case keypad != nil:
		return string(keypad.Info)
	}
	return ""
}

func (a *App) ssOps() ss.Ops {
	return ss.Ops{
		RegisterInd: a.registerInd,
		FacilityInd: func(s *ss.Session, msg *ss.Facility) {
			a.log.Debug("Facility", logger.String("session", s.String()))
		},
		ReleaseInd: func(s *ss.Session, reason sfmt.ReleaseCode) {
			a.log.Debug("Session released",
				logger.String("session", s.String()),
				logger.String("reason", reason.String()))
		},
	}
}

// registerInd treats a CISS register as a message to the fixed part and
// closes the session right away
func (a *App) registerInd(s *ss.Session, msg *ss.Register) {
	text := messageText(msg.IWUToIWU, msg.Display, msg.Keypad)
	if ipui, ok := s.Peer(); ok && text != "" {
		if p := a.peers.GetPeer(ipui); p != nil {
			a.publishMessage(p, text)
		}
	}
	if err := a.ss.ReleaseReq(s, &ss.ReleaseCom{}); err != nil {
		a.log.Debug("Releasing session failed", logger.Error(err))
	}
}

func (a *App) variableInd(link lce.LinkID, msg *clms.Variable) {
	ipui, ok := a.lce.Peer(link)
	if pi := msg.PortableIdentity; !ok && pi != nil && pi.Kind == sfmt.PortableIDIPUI {
		ipui, ok = pi.IPUI, true
	}
	if !ok {
		a.log.Debug("Message on anonymous link", logger.Uint32("link", uint32(link)))
		return
	}
	p := a.peers.GetPeer(ipui)
	if p == nil {
		a.log.Info("Message from unknown portable", logger.String("ipui", ipui.String()))
		return
	}
	text := messageText(msg.IWUToIWU, msg.Display, nil)
	a.log.Info("Message received",
		logger.String("ipui", ipui.String()),
		logger.String("text", text))
	a.publishMessage(p, text)
}

func (a *App) publishMessage(p *peer.Peer, text string) {
	if a.pub == nil {
		return
	}
	err := a.pub.PublishMessage(mqtt.MessageEvent{
		IPUI:      p.IPUI.String(),
		Extension: p.GetExtension(),
		Text:      text,
		Timestamp: time.Now(),
	})
	if err != nil {
		a.log.Debug("Message event not published", logger.Error(err))
	}
}

// lookup finds a registered portable by extension or IPUI string
func (a *App) lookup(to string) *peer.Peer {
	if p := a.peers.GetPeerByExtension(to); p != nil {
		return p
	}
	for _, p := range a.peers.GetAllPeers() {
		if p.IPUI.String() == to {
			return p
		}
	}
	return nil
}

// SendMessage sends text to a portable as a connectionless message. to is
// an extension or an IPUI. It must run on the scheduler goroutine.
func (a *App) SendMessage(to, text string) error {
	p := a.lookup(to)
	if p == nil {
		return ErrUnknownPortable
	}
	return a.clms.SendVariable(p.IPUI, &clms.Variable{
		Display: &sfmt.Display{Text: []byte(text)},
	})
}

func (a *App) sendCommand(payload []byte) error {
	var cmd SendCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.To == "" {
		return ErrBadCommand
	}
	return a.run(func() error {
		return a.SendMessage(cmd.To, cmd.Text)
	})
}

func (a *App) dialCommand(payload []byte) error {
	var cmd DialCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.To == "" {
		return ErrBadCommand
	}
	return a.run(func() error {
		id, err := a.CallTo(cmd.To)
		if err != nil {
			return fmt.Errorf("dialling %s: %w", cmd.To, err)
		}
		a.log.Info("Call placed", logger.String("to", cmd.To), logger.Uint64("call", id))
		return nil
	})
}

func (a *App) hangUpCommand(payload []byte) error {
	var cmd HangUpCommand
	if err := json.Unmarshal(payload, &cmd); err != nil || cmd.ID == 0 {
		return ErrBadCommand
	}
	return a.run(func() error {
		return a.HangUp(cmd.ID)
	})
}
