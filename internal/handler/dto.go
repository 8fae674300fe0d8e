// Пакет handler предоставляет HTTP API для сообщений, шар и переходов
package handler

// Тело запроса на регистрацию сообщения
type CreateMessageRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Тело запроса на создание шары
type CreateShareRequest struct {
	MessageID     string `json:"message_id"`
	ParentRefCode string `json:"parent_ref_code"`
}

// Ответ с созданной шарой
type ShareResponse struct {
	ShareID       string  `json:"share_id"`
	RefCode       string  `json:"ref_code"`
	MessageID     string  `json:"message_id"`
	ParentShareID *string `json:"parent_share_id,omitempty"`
	Hop           int     `json:"hop"`
	ShareURL      string  `json:"share_url"`
}

// Ответ с данными шары
type ShareDetailsResponse struct {
	ShareID       string  `json:"share_id"`
	RefCode       string  `json:"ref_code"`
	MessageID     string  `json:"message_id"`
	ParentShareID *string `json:"parent_share_id,omitempty"`
	TargetURL     string  `json:"target_url"`
	Title         string  `json:"title,omitempty"`
	Description   string  `json:"description,omitempty"`
	Hop           int     `json:"hop"`
	Views         int64   `json:"views"`
	MessageHits   int64   `json:"message_hits"`
}

// Элемент цепочки пересылок
type LineageEntry struct {
	ShareID       string  `json:"share_id"`
	RefCode       string  `json:"ref_code"`
	ParentShareID *string `json:"parent_share_id,omitempty"`
	Hop           int     `json:"hop"`
	Views         int64   `json:"views"`
}

// Ответ с цепочкой пересылок, корень первым
type LineageResponse struct {
	RefCode string         `json:"ref_code"`
	Chain   []LineageEntry `json:"chain"`
}

// Ответ со статистикой сообщения
type MessageStatsResponse struct {
	MessageID string `json:"message_id"`
	OriginURL string `json:"origin_url"`
	Title     string `json:"title,omitempty"`
	Shares    int64  `json:"shares"`
	MaxHop    int    `json:"max_hop"`
	Hits      int64  `json:"hits"`
}

// Ответ ошибки
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
