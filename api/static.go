package api

import (
	"errors"
	"net/http"
	"os"

	"jobboard/util"
)

// staticStage serves existing regular files below the public directory.
// Anything else, including traversal attempts, falls through to routing.
func (a *API) staticStage() Stage {
	dir := a.config.Server.PublicDir

	return StageFunc("static", func(w http.ResponseWriter, r *http.Request) Result {
		if dir == "" || (r.Method != http.MethodGet && r.Method != http.MethodHead) {
			return Next(nil)
		}
		if r.URL.Path == "" || r.URL.Path == "/" {
			return Next(nil)
		}

		path, err := util.ResolveInDir(dir, r.URL.Path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				a.logger.Debugw("Static path rejected",
					"request_id", GetRequestIDOrDefault(r.Context()),
					"path", r.URL.Path,
					"error", err)
			}
			return Next(nil)
		}

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return Next(nil)
		}

		http.ServeFile(w, r, path)
		return Done()
	})
}
