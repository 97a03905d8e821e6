/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 400

// qrTarget resolves what the code should point at: the player page for a
// join code, or an arbitrary url.
func qrTarget(cfg *Config, q url.Values) string {
	if room := q.Get("room"); room != "" {
		return cfg.hostURL + "/player.html?code=" + url.QueryEscape(room)
	}
	return q.Get("url")
}

func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		target := qrTarget(cfg, r.URL.Query())
		if target == "" {
			if err := writeError(cfg, w, validationError("room or url required")); err != nil {
				errs <- err
			}
			return
		}

		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			if werr := writeError(cfg, w, validationError("qr generation failed")); werr != nil {
				errs <- werr
			}
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err
			return
		}

		logf("SERVE: QR code (%s) to %s in %s",
			byteCount(written),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
