package clients

const (
	USER_AGENT = "sentiment-analyzer-frontend/1.0 (+https://github.com/DYAI2025/sentiment-analyzer-frontend)"

	REST_PATH     = "/rest/v1/"
	REALTIME_PATH = "/realtime/v1/websocket"
)
