package web

// StatusInput takes no parameters.
type StatusInput struct{}

type StatusBody struct {
	Service         string `json:"service" doc:"Service name"`
	Version         string `json:"version" doc:"Service version"`
	GraphAPIBase    string `json:"graphApiBase" doc:"Graph API base URL used for outbound calls"`
	RedeliveryGuard bool   `json:"redeliveryGuard" doc:"Whether redelivered events are detected"`
	UptimeSeconds   int64  `json:"uptimeSeconds" doc:"Seconds since the server started"`
}

type StatusOutput struct {
	Body StatusBody
}
