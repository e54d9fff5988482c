package examengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDifficultyForAbility_Thresholds(t *testing.T) {
	testCases := []struct {
		name     string
		theta    float64
		expected int
	}{
		{"глубоко ниже шкалы", -4.0, 1},
		{"ровно на границе -2", -2.0, 1},
		{"чуть выше -2", -1.99, 2},
		{"ровно на границе -0.5", -0.5, 2},
		{"чуть выше -0.5", -0.49, 3},
		{"ноль", 0, 3},
		{"ровно на границе 0.5", 0.5, 3},
		{"чуть выше 0.5", 0.51, 4},
		{"ровно на границе 2", 2.0, 4},
		{"чуть выше 2", 2.01, 5},
		{"верх шкалы", 4.0, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DifficultyForAbility(tc.theta),
				"Неверная сложность для theta=%v", tc.theta)
		})
	}
}

func TestDifficultyForAbility_Monotonic(t *testing.T) {
	prev := DifficultyForAbility(-4)
	for theta := -3.9; theta <= 4; theta += 0.1 {
		d := DifficultyForAbility(theta)
		assert.GreaterOrEqual(t, d, prev, "Отображение theta -> сложность должно быть неубывающим")
		prev = d
	}
}

func TestClampDifficulty(t *testing.T) {
	assert.Equal(t, 1, ClampDifficulty(0))
	assert.Equal(t, 1, ClampDifficulty(-3))
	assert.Equal(t, 3, ClampDifficulty(3))
	assert.Equal(t, 5, ClampDifficulty(6))
}

func TestDifficultyWindow(t *testing.T) {
	assert.Equal(t, []int{1, 2}, DifficultyWindow(1), "Окно на нижней границе зажимается")
	assert.Equal(t, []int{2, 3, 4}, DifficultyWindow(3))
	assert.Equal(t, []int{4, 5}, DifficultyWindow(5), "Окно на верхней границе зажимается")
}
