package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ExtractUintParam извлекает и валидирует числовой параметр URL.
// Маршруты попыток и банка заданий вешают его на группы "/:id", складывая
// значение в контекст Gin под ключами "attemptID"/"itemID"/"configID";
// обработчики дальше читают его через c.MustGet. Нечисловой параметр
// обрывает запрос с 400 до входа в обработчик.
func ExtractUintParam(paramName, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Param(paramName)
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", paramName)})
			c.Abort()
			return
		}
		// Сохраняем как uint: все идентификаторы сущностей — uint
		c.Set(contextKey, uint(id))
		c.Next()
	}
}
