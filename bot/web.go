// © 2020 the PicBot Authors under the WTFPL. See AUTHORS for the list of authors.

package bot

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

func (b *bot) serveRoot(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "%s endpoints:\n", b.me.Name)
	for _, e := range b.GetWebNavigation() {
		fmt.Fprintf(w, "%s\t%s\n", e.Name, e.URL)
	}
}

func (b *bot) serveNav(w http.ResponseWriter, r *http.Request) {
	enc := json.NewEncoder(w)
	err := enc.Encode(b.GetWebNavigation())
	if err != nil {
		jsonErr, _ := json.Marshal(err)
		w.WriteHeader(500)
		w.Write(jsonErr)
	}
}

// GetWebNavigation returns the list of registered plugin endpoints plus any
// extra links configured under bot.links
func (b *bot) GetWebNavigation() []EndPoint {
	endpoints := b.httpEndPoints
	moreEndpoints := b.config.GetArray("bot.links", []string{})
	for _, e := range moreEndpoints {
		link := strings.SplitN(e, ":", 2)
		if len(link) != 2 {
			continue
		}
		endpoints = append(endpoints, EndPoint{link[0], link[1]})
	}
	return endpoints
}

// RegisterWebName mounts a plugin's handler under root and lists it in the nav
func (b *bot) RegisterWebName(r http.Handler, root, name string) {
	log.Debug().Msgf("registering web endpoint %s at %s", name, root)
	b.httpEndPoints = append(b.httpEndPoints, EndPoint{name, root})
	b.router.Mount(root, r)
}
