package models

import "time"

// TokenPair is the access/refresh credential pair issued by the backend.
// The access token is a JWT whose exp claim the client peeks at (without
// verifying the signature) to decide when to refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type Profile struct {
	ID      int64  `json:"id"`
	Nombre  string `json:"nombre"`
	Email   string `json:"email"`
	Ciudad  string `json:"ciudad,omitempty"`
	Carrera string `json:"carrera,omitempty"`
}

// Registration carries the profile fields sent on account creation. The
// password travels separately.
type Registration struct {
	Nombre  string `json:"nombre"`
	Email   string `json:"email"`
	Ciudad  string `json:"ciudad,omitempty"`
	Carrera string `json:"carrera,omitempty"`
}

// Listing is a published book or set of study notes offered for exchange.
type Listing struct {
	ID            int64  `json:"id"`
	Tipo          string `json:"tipo"` // LIBRO or APUNTES
	Titulo        string `json:"titulo"`
	Autor         string `json:"autor,omitempty"`
	Curso         string `json:"curso,omitempty"`
	Descripcion   string `json:"descripcion,omitempty"`
	PropietarioID int64  `json:"propietarioId"`
}

type Exchange struct {
	ID            int64     `json:"id"`
	PublicacionID int64     `json:"publicacionId"`
	SolicitanteID int64     `json:"solicitanteId"`
	Estado        string    `json:"estado"` // PENDIENTE, ACEPTADO, RECHAZADO
	Fecha         time.Time `json:"fecha"`
}

// Notification is a server-pushed notification record. Field names follow
// the backend's wire format.
type Notification struct {
	ID            int64     `json:"id"`
	Tipo          string    `json:"tipo"`
	Titulo        string    `json:"titulo"`
	Mensaje       string    `json:"mensaje,omitempty"`
	ChatID        *int64    `json:"chatId,omitempty"`
	IntercambioID *int64    `json:"intercambioId,omitempty"`
	Fecha         time.Time `json:"fecha"`
}

// ChatMessage is a message on a chat topic. ID is absent on frames the
// backend relays before persisting.
type ChatMessage struct {
	ID        *int64    `json:"id,omitempty"`
	ChatID    int64     `json:"chatId,omitempty"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
