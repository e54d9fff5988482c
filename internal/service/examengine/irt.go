package examengine

import (
	"math"
)

// Probability вычисляет вероятность правильного ответа по трёхпараметрической
// логистической модели (3PL):
//
//	P(θ) = c + (1 − c) / (1 + exp(−a·(θ − b)))
//
// a — дискриминация (a > 0), b — сложность, c — вероятность угадывания (c ∈ [0,1)).
func Probability(theta, a, b, c float64) float64 {
	return c + (1-c)/(1+math.Exp(-a*(theta-b)))
}

// Information вычисляет информацию Фишера вопроса при способности θ:
//
//	I(θ) = a² · P'(θ)² / (P(θ) · Q(θ))
//
// где P'(θ) = a·(1−c)·exp(−a·(θ−b)) / (1 + exp(−a·(θ−b)))².
// Чем выше информация, тем сильнее ответ на вопрос сужает неопределённость θ.
func Information(theta, a, b, c float64) float64 {
	e := math.Exp(-a * (theta - b))
	p := c + (1-c)/(1+e)
	q := 1 - p
	if p <= 0 || q <= 0 {
		// Вырожденный случай: вопрос ничего не сообщает
		return 0
	}

	dp := a * (1 - c) * e / ((1 + e) * (1 + e))
	return a * a * dp * dp / (p * q)
}

// abilityStep возвращает величину шага коррекции θ в зависимости от числа
// уже отвеченных вопросов: новые попытки сходятся быстро, зрелые — стабильны.
func abilityStep(answered int) float64 {
	if answered < 5 {
		return 0.6
	}
	if answered < 15 {
		return 0.4
	}
	return 0.25
}

// UpdateAbility возвращает уточнённую оценку способности после ответа на вопрос
// с параметрами (a, b, c). Инкрементальная коррекция по остатку 3PL:
//
//	θ' = θ + K(n) · (outcome − P(θ))
//
// где outcome = 1 для правильного ответа, 0 для неправильного, n — число
// отвеченных вопросов ДО текущего. Результат ограничен [MinAbility, MaxAbility].
func UpdateAbility(theta float64, a, b, c float64, correct bool, answered int) float64 {
	expected := Probability(theta, a, b, c)

	outcome := 0.0
	if correct {
		outcome = 1.0
	}

	updated := theta + abilityStep(answered)*(outcome-expected)

	if updated < MinAbility {
		updated = MinAbility
	}
	if updated > MaxAbility {
		updated = MaxAbility
	}
	return updated
}
