package examengine

import (
	"github.com/yourusername/exam-api/internal/domain/entity"
)

// DifficultyForAbility отображает непрерывную оценку способности θ в грубую
// шкалу сложности 1-5 по фиксированным порогам:
//
//	θ ≤ −2.0        → 1 (very easy)
//	−2.0 < θ ≤ −0.5 → 2 (easy)
//	−0.5 < θ ≤ 0.5  → 3 (medium)
//	0.5 < θ ≤ 2.0   → 4 (hard)
//	θ > 2.0         → 5 (very hard)
//
// Функция — монотонно неубывающая ступенчатая и обязана оставаться такой
// при любой репараметризации шкалы.
func DifficultyForAbility(theta float64) int {
	switch {
	case theta <= -2.0:
		return 1
	case theta <= -0.5:
		return 2
	case theta <= 0.5:
		return 3
	case theta <= 2.0:
		return 4
	default:
		return 5
	}
}

// ClampDifficulty ограничивает уровень сложности допустимым диапазоном 1-5
func ClampDifficulty(difficulty int) int {
	if difficulty < entity.MinDifficulty {
		return entity.MinDifficulty
	}
	if difficulty > entity.MaxDifficulty {
		return entity.MaxDifficulty
	}
	return difficulty
}

// DifficultyWindow возвращает включительный диапазон [target−1, target+1],
// зажатый в [1, 5]. Используется селектором, когда точный уровень не задан.
func DifficultyWindow(target int) []int {
	low := ClampDifficulty(target - 1)
	high := ClampDifficulty(target + 1)

	window := make([]int, 0, high-low+1)
	for d := low; d <= high; d++ {
		window = append(window, d)
	}
	return window
}
