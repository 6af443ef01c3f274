package utils

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/senyabanana/insurance-marketplace/internal/models"
)

// SendErrorResponse отправляет ошибку в формате JSON
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// ParseLimitOffset обрабатывает limit и offset
func ParseLimitOffset(limitStr, offsetStr string) (int, int, error) {
	var limit, offset int
	var err error

	if limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 || limit > 50 {
			return 0, 0, fmt.Errorf("invalid limit parameter, must be a positive integer [0:50]")
		}
	} else {
		limit = 5
	}

	if offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset parameter, must be a non-negative integer")
		}
	} else {
		offset = 0
	}

	return limit, offset, nil
}

// GetUserID извлекает идентификатор пользователя, проставленный слоем
// аутентификации. Ядро доверяет этому значению и не перепроверяет его.
func GetUserID(r *http.Request) string {
	return r.URL.Query().Get("userId")
}

// ContainsRequestStatus проверяет, что значение входит в перечисление статусов заявки.
func ContainsRequestStatus(status models.RequestStatus) bool {
	switch status {
	case models.OpenRequest, models.BiddingRequest, models.ReviewingRequest,
		models.AwardedRequest, models.ClosedRequest, models.ExpiredRequest:
		return true
	}
	return false
}
