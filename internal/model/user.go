package model

// User содержит минимальное представление пользователя, которое нужно диспетчеру
// учётные записи ведёт внешняя система
type User struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	AvailablePages int    `json:"available_pages"`
}

// File содержит метаданные загруженного документа
type File struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TotalPages int    `json:"total_pages"`
	MimeType   string `json:"mime_type"`
	Path       string `json:"path"`
}
