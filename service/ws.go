/* Copyright 2026 Rabe42
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package service

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{} // use default options

// handleWatch streams a machine's journal over a WebSocket: first the
// journaled history, then entries as they happen.  A client that
// can't keep up loses entries.
func (s *Service) handleWatch(w http.ResponseWriter, r *http.Request) {
	mid := pathParam(r, "machine-id")

	c, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("watch upgrade failed")
		return
	}
	defer c.Close()

	ctl := make(chan bool)

	entries := s.watch(mid)
	defer s.unwatch(mid, entries)

	go func() {
		mt := websocket.TextMessage

		// Live entries repeat what the history already said;
		// sequence numbers sort that out.
		lastSeq := int64(-1)

		history, err := s.History(r.Context(), mid, 0, 0)
		if err != nil {
			log.WithError(err).WithField("machine", mid).Warn("watch history failed")
		}
		for _, e := range history {
			js, err := json.Marshal(e)
			if err != nil {
				log.WithError(err).Warn("watch marshal failed")
				continue
			}
			if err := c.WriteMessage(mt, js); err != nil {
				log.WithError(err).Debug("watch write failed")
				return
			}
			lastSeq = e.Seq
		}

	LOOP:
		for {
			select {
			case <-ctl:
				break LOOP
			case <-r.Context().Done():
				break LOOP
			case e := <-entries:
				if e == nil {
					break LOOP
				}
				if 0 != e.Seq && e.Seq <= lastSeq {
					continue
				}
				js, err := json.Marshal(e)
				if err != nil {
					log.WithError(err).Warn("watch marshal failed")
					continue
				}
				if err := c.WriteMessage(mt, js); err != nil {
					log.WithError(err).Debug("watch write failed")
					break LOOP
				}
			}
		}
		c.Close()
	}()

	// The client doesn't get to say anything; reading just notices
	// when it hangs up.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
	close(ctl)
}
