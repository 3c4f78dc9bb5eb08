package ports

import (
	"encoding/json"
	"net/http"

	"github.com/Amund211/askbox/internal/adapters/clientpool"
)

type healthResponse struct {
	Status string `json:"status"`
	Pool   struct {
		Max    int `json:"max"`
		Idle   int `json:"idle"`
		Leased int `json:"leased"`
	} `json:"pool"`
	Cache struct {
		Entries int `json:"entries"`
	} `json:"cache"`
}

func MakeHealthHandler(poolStats func() clientpool.Stats, cacheLen func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := poolStats()

		var response healthResponse
		response.Status = statusOK
		response.Pool.Max = stats.Max
		response.Pool.Idle = stats.Idle
		response.Pool.Leased = stats.Leased
		response.Cache.Entries = cacheLen()

		data, err := json.Marshal(response)
		if err != nil {
			writeResponse(w, http.StatusInternalServerError, internalErrorResponse)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
