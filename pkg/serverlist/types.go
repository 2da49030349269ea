package serverlist

type Server struct {
	Name         string  `json:"ServerName"`
	PlayerCount  float64 `json:"PlayerCount"`
	FPS          float64 `json:"fps"`
	BuildVersion float64 `json:"BuildVersion"`
	IngameTime   string  `json:"IngameTime"`
}

type listResponse struct {
	Servers []*Server `json:"servers"`
}
