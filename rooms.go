/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type createRoomRequest struct {
	HostName string `json:"hostName"`
}

type joinRoomRequest struct {
	JoinCode string `json:"joinCode"`
	Name     string `json:"name"`
}

func serveCreateRoom(cfg *Config, d *Dispatcher, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req createRoomRequest
		if err := decodeBody(r, &req); err != nil {
			if werr := writeError(cfg, w, err); werr != nil {
				errs <- werr
			}
			return
		}

		result, err := d.registry.CreateRoom(req.HostName)
		if err != nil {
			if werr := writeError(cfg, w, err); werr != nil {
				errs <- werr
			}
			return
		}

		if err := writeJSON(cfg, w, http.StatusCreated, result); err != nil {
			errs <- err
			return
		}

		logf("ROOMS: Created room %s (%s) for %s in %s",
			result.JoinCode,
			result.RoomID,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveJoinRoom(cfg *Config, d *Dispatcher, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req joinRoomRequest
		if err := decodeBody(r, &req); err != nil {
			if werr := writeError(cfg, w, err); werr != nil {
				errs <- werr
			}
			return
		}

		result, err := d.registry.JoinRoom(req.JoinCode, req.Name)
		if err != nil {
			if werr := writeError(cfg, w, err); werr != nil {
				errs <- werr
			}
			return
		}

		// Reaches peers that are already connected; the joiner binds later.
		_ = d.BroadcastRoomState(result.RoomID)

		if err := writeJSON(cfg, w, http.StatusOK, result); err != nil {
			errs <- err
			return
		}

		logf("ROOMS: Player %s joined %s from %s", result.PlayerID, result.JoinCode, realIP(r))
	}
}

func serveWS(cfg *Config, d *Dispatcher) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Str("remote", realIP(r)).Err(err).Msg("websocket upgrade failed")
			return
		}

		c := newClient(conn, realIP(r), rate.NewLimiter(rate.Limit(cfg.rateLimit), cfg.rateBurst))

		log.Info().Str("remote", c.remote).Msg("websocket connected")

		go c.writePump()
		c.readPump(d.Handle)
		d.Disconnect(c)

		log.Info().Str("remote", c.remote).Msg("websocket closed")
	}
}

func registerGame(ctx context.Context, cfg *Config, d *Dispatcher, mux *httprouter.Router, errs chan<- error) {
	mux.POST(cfg.prefix+"/rooms", serveCreateRoom(cfg, d, errs))
	mux.POST(cfg.prefix+"/join", serveJoinRoom(cfg, d, errs))
	mux.GET(cfg.prefix+"/qr", serveQR(cfg, errs))
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, d))

	if cfg.roomTimeout > 0 {
		go d.registry.reaperLoop(ctx, cfg.roomTimeout, func(room *Room) {
			logf("ROOMS: Reaped idle room %s (%s)", room.JoinCode, room.ID)
			d.closeRoom(room)
		})
	}
}
