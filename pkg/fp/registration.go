package fp

import (
	"errors"
	"strconv"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/mm"
	"github.com/dbehnke/dect-nwk/pkg/mqtt"
	"github.com/dbehnke/dect-nwk/pkg/peer"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// Portable event kinds, shared by the dashboard and MQTT
const (
	PortableSubscribed   = "subscribe"
	PortableUnsubscribed = "unsubscribe"
	PortableAttached     = "attach"
	PortableDetached     = "detach"
)

func (a *App) mmOps() mm.Ops {
	return mm.Ops{
		AccessRightsInd:            a.accessRightsInd,
		AccessRightsTerminateInd:   a.accessRightsTerminateInd,
		AccessRightsTerminateCfm:   a.accessRightsTerminateCfm,
		LocateInd:                  a.locateInd,
		TemporaryIdentityAssignCfm: a.assignCfm,
		DetachInd:                  a.detachInd,
		Aborted:                    a.mmAborted,
	}
}

func (a *App) park() identity.PARK {
	return identity.PARK{ARI: a.cfg.ARI, PLI: a.cfg.PLI}
}

func (a *App) locationArea() *sfmt.LocationArea {
	return &sfmt.LocationArea{Kind: sfmt.LocationAreaLevel, Level: a.cfg.LocationArea}
}

// identify returns the IPUI a request names. A TPUI is looked up among the
// known portables; a missing identity falls back to the link peer.
func (a *App) identify(ep *mm.Endpoint, pi *sfmt.PortableIdentity) (identity.IPUI, bool) {
	if pi == nil {
		return ep.Peer()
	}
	switch pi.Kind {
	case sfmt.PortableIDIPUI:
		return pi.IPUI, true
	case sfmt.PortableIDTPUI:
		for _, p := range a.peers.GetAllPeers() {
			if p.GetTPUI() == pi.TPUI {
				return p.IPUI, true
			}
		}
	}
	return identity.IPUI{}, false
}

// deny rejects an MM request and counts it
func (a *App) deny(ep *mm.Endpoint, t mm.ProcedureType, ipui identity.IPUI, reason sfmt.RejectCode) {
	a.log.Info("Request rejected",
		logger.String("procedure", t.String()),
		logger.String("ipui", ipui.String()),
		logger.String("reason", reason.String()))
	if a.metrics != nil {
		a.metrics.AccessDenied()
	}
	if err := a.mm.RejectReq(ep, t, reason); err != nil {
		a.log.Debug("Sending reject failed", logger.Error(err))
	}
}

// accessRightsInd subscribes a portable: the IPEI must pass the ACL, the
// portable gets an extension and the PARK of this fixed part
func (a *App) accessRightsInd(ep *mm.Endpoint, req *mm.AccessRightsRequest) {
	ipui, ok := a.identify(ep, req.PortableIdentity)
	if !ok {
		a.deny(ep, mm.ProcAccessRights, ipui, sfmt.RejectIPUINotAccepted)
		return
	}
	if !a.cfg.Registration.Enabled {
		a.deny(ep, mm.ProcAccessRights, ipui, sfmt.RejectIPUINotAccepted)
		return
	}
	if !a.acl.CheckIPUI(ipui) {
		a.deny(ep, mm.ProcAccessRights, ipui, sfmt.RejectIPEINotAccepted)
		return
	}

	rec, err := a.portables.GetByIPUI(ipui.String())
	switch {
	case errors.Is(err, database.ErrNotFound):
		ext, err := a.portables.NextExtension(a.cfg.Registration.ExtensionStart)
		if err != nil {
			a.log.Error("Failed to allocate extension", logger.Error(err))
			a.deny(ep, mm.ProcAccessRights, ipui, sfmt.RejectInsufficientMemory)
			return
		}
		rec = database.NewPortable(ipui)
		rec.Extension = ext
	case err != nil:
		a.log.Error("Registry lookup failed", logger.Error(err))
		a.deny(ep, mm.ProcAccessRights, ipui, sfmt.RejectInsufficientMemory)
		return
	}
	if err := a.portables.Upsert(rec); err != nil {
		a.log.Error("Failed to store portable", logger.Error(err))
		a.deny(ep, mm.ProcAccessRights, ipui, sfmt.RejectInsufficientMemory)
		return
	}

	res := &mm.AccessRightsAccept{
		PortableIdentity: &sfmt.PortableIdentity{Kind: sfmt.PortableIDIPUI, IPUI: ipui},
		LocationArea:     a.locationArea(),
	}
	res.FixedIdentity.Add(&sfmt.FixedIdentity{Kind: sfmt.FixedIDPARK, PARK: a.park()})
	if err := a.mm.AccessRightsRes(ep, res); err != nil {
		a.log.Warn("Sending access rights accept failed", logger.Error(err))
		return
	}

	p := a.peers.AddPeer(ipui)
	p.SetExtension(rec.Extension)
	p.SetLink(ep.Link)
	if a.metrics != nil {
		a.metrics.AccessRightsGranted()
	}
	a.log.Info("Portable subscribed",
		logger.String("ipui", ipui.String()),
		logger.String("extension", rec.Extension))
	a.notifyPortable(PortableSubscribed, p)
}

// assignedTPUI derives the individual assigned TPUI from a numeric
// extension
func assignedTPUI(ext string) (identity.TPUI, bool) {
	n, err := strconv.Atoi(ext)
	if err != nil || n <= 0 || n >= 0xa0000 {
		return 0, false
	}
	return identity.TPUI(n), true
}

// locateInd attaches a subscribed portable, offering an assigned TPUI
// when configured
func (a *App) locateInd(ep *mm.Endpoint, req *mm.LocateRequest) {
	ipui, ok := a.identify(ep, req.PortableIdentity)
	if !ok {
		reason := sfmt.RejectIPUIUnknown
		if req.PortableIdentity != nil && req.PortableIdentity.Kind == sfmt.PortableIDTPUI {
			reason = sfmt.RejectTPUIUnknown
		}
		a.deny(ep, mm.ProcLocate, ipui, reason)
		return
	}
	rec, err := a.portables.GetByIPUI(ipui.String())
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			a.log.Error("Registry lookup failed", logger.Error(err))
		}
		a.deny(ep, mm.ProcLocate, ipui, sfmt.RejectIPUIUnknown)
		return
	}
	if err := a.lce.SetPeer(ep.Link, ipui); err != nil {
		a.log.Debug("Recording peer failed", logger.Error(err))
	}

	res := &mm.LocateAccept{LocationArea: a.locationArea()}
	if a.cfg.Registration.AssignTPUI {
		if tpui, ok := assignedTPUI(rec.Extension); ok && tpui != identity.TPUI(rec.TPUI) {
			res.PortableIdentity = &sfmt.PortableIdentity{Kind: sfmt.PortableIDTPUI, TPUI: tpui}
			a.pending[ep.Link] = assignment{ipui: ipui, tpui: tpui}
		}
	}
	if err := a.mm.LocateRes(ep, res); err != nil {
		delete(a.pending, ep.Link)
		a.log.Warn("Sending locate accept failed", logger.Error(err))
		return
	}
	a.attached(ep.Link, ipui, rec)
}

// assignCfm completes the TPUI offered in LOCATE-ACCEPT
func (a *App) assignCfm(ep *mm.Endpoint, accept bool, err error) {
	as, ok := a.pending[ep.Link]
	if !ok {
		return
	}
	delete(a.pending, ep.Link)
	if !accept {
		a.log.Info("TPUI assignment refused",
			logger.String("ipui", as.ipui.String()),
			logger.Error(err))
		return
	}
	if err := a.portables.SetTPUI(as.ipui.String(), uint32(as.tpui)); err != nil {
		a.log.Warn("Failed to store TPUI", logger.Error(err))
	}
	if p := a.peers.GetPeer(as.ipui); p != nil {
		p.SetTPUI(as.tpui)
	}
	a.log.Info("TPUI assigned",
		logger.String("ipui", as.ipui.String()),
		logger.String("tpui", as.tpui.String()))
}

func (a *App) detachInd(ep *mm.Endpoint, req *mm.Detach) {
	ipui, ok := a.identify(ep, req.PortableIdentity)
	if !ok {
		a.log.Debug("Detach from unknown portable")
		return
	}
	p := a.peers.GetPeer(ipui)
	if p == nil {
		return
	}
	p.SetState(peer.StateDetached)
	a.detached(p, "detach")
}

// accessRightsTerminateInd removes a subscription the portable gave up
func (a *App) accessRightsTerminateInd(ep *mm.Endpoint, req *mm.AccessRightsTerminateRequest) {
	ipui, ok := a.identify(ep, req.PortableIdentity)
	if !ok {
		a.deny(ep, mm.ProcAccessRightsTerminate, ipui, sfmt.RejectIPUIUnknown)
		return
	}
	if err := a.portables.Delete(ipui.String()); err != nil && !errors.Is(err, database.ErrNotFound) {
		a.log.Error("Failed to delete portable", logger.Error(err))
		a.deny(ep, mm.ProcAccessRightsTerminate, ipui, sfmt.RejectInsufficientMemory)
		return
	}
	if err := a.mm.AccessRightsTerminateRes(ep); err != nil {
		a.log.Warn("Sending terminate accept failed", logger.Error(err))
	}
	if p := a.peers.GetPeer(ipui); p != nil {
		a.forget(p)
	}
}

func (a *App) accessRightsTerminateCfm(ep *mm.Endpoint, accept bool, err error) {
	ipui, _ := ep.Peer()
	a.log.Info("Access rights terminated",
		logger.String("ipui", ipui.String()),
		logger.Bool("accepted", accept),
		logger.Error(err))
}

// terminate forgets a portable and asks it to drop its subscription. The
// endpoint is resolved first so the page still carries the assigned TPUI.
func (a *App) terminate(p *peer.Peer) {
	ep, err := a.mm.Endpoint(p.IPUI)
	a.forget(p)
	if err != nil {
		a.log.Info("Portable unreachable for terminate",
			logger.String("ipui", p.IPUI.String()),
			logger.Error(err))
		return
	}
	req := &mm.AccessRightsTerminateRequest{
		PortableIdentity: &sfmt.PortableIdentity{Kind: sfmt.PortableIDIPUI, IPUI: p.IPUI},
	}
	req.FixedIdentity.Add(&sfmt.FixedIdentity{Kind: sfmt.FixedIDPARK, PARK: a.park()})
	if err := a.mm.AccessRightsTerminateReq(ep, req); err != nil {
		a.log.Info("Access rights terminate failed",
			logger.String("ipui", p.IPUI.String()),
			logger.Error(err))
	}
}

// forget drops a portable from the live table
func (a *App) forget(p *peer.Peer) {
	a.peers.RemovePeer(p.IPUI)
	if a.metrics != nil {
		a.metrics.PortableDetached(p.IPUI.String())
	}
	a.log.Info("Portable unsubscribed", logger.String("ipui", p.IPUI.String()))
	a.notifyPortable(PortableUnsubscribed, p)
}

func (a *App) attached(link lce.LinkID, ipui identity.IPUI, rec *database.Portable) {
	p := a.peers.AddPeer(ipui)
	p.SetExtension(rec.Extension)
	p.SetLink(link)
	p.SetState(peer.StateAttached)
	if err := a.portables.SetAttached(rec.IPUI, true); err != nil {
		a.log.Warn("Failed to store attach state", logger.Error(err))
	}
	if a.metrics != nil {
		a.metrics.PortableAttached(ipui.String())
	}
	a.log.Info("Portable attached",
		logger.String("ipui", ipui.String()),
		logger.String("extension", rec.Extension),
		logger.Uint32("link", uint32(link)))
	a.notifyPortable(PortableAttached, p)
}

// detached records a portable that left, explicitly or by timeout
func (a *App) detached(p *peer.Peer, cause string) {
	if err := a.portables.SetAttached(p.IPUI.String(), false); err != nil && !errors.Is(err, database.ErrNotFound) {
		a.log.Warn("Failed to store detach state", logger.Error(err))
	}
	if a.metrics != nil {
		a.metrics.PortableDetached(p.IPUI.String())
	}
	a.log.Info("Portable detached",
		logger.String("ipui", p.IPUI.String()),
		logger.String("cause", cause))
	a.notifyPortable(PortableDetached, p)
}

func (a *App) mmAborted(ep *mm.Endpoint, t mm.ProcedureType, err error) {
	delete(a.pending, ep.Link)
	a.log.Info("Procedure aborted",
		logger.Uint32("link", uint32(ep.Link)),
		logger.String("procedure", t.String()),
		logger.Error(err))
}

func (a *App) notifyPortable(kind string, p *peer.Peer) {
	ipui, ext := p.IPUI.String(), p.GetExtension()
	if a.events != nil {
		a.events.BroadcastPortable("portable_"+kind, ipui, ext)
	}
	if a.pub != nil {
		err := a.pub.PublishPortable(mqtt.PortableEvent{
			IPUI:      ipui,
			Extension: ext,
			TPUI:      p.GetTPUI().String(),
			Event:     kind,
			Timestamp: time.Now(),
		})
		if err != nil {
			a.log.Debug("Portable event not published", logger.Error(err))
		}
	}
}
