// Package matching содержит расчёт совместимости и запись взаимного совпадения.
package matching

import (
	"math"

	"github.com/jakobreinwald/cs-130-project-sub000/internal/domain/profile"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE CALCULATOR
//
// score(user, candidate) = genre * 2/3 + artist * 1/3
//
// Функция асимметрична: жанровая часть считается по жанрам первого
// пользователя, артистная - по его топ-артистам. Симметричная оценка
// пары - среднее двух направлений (MutualScore).
// ══════════════════════════════════════════════════════════════════════════════

const (
	// Undetermined - оценку нельзя вычислить: не хватает сигнала.
	Undetermined = -1.0

	// ArtistUniverse - верхняя граница числа топ-артистов в артистной части.
	ArtistUniverse = 50

	genreWeight  = 2.0 / 3.0
	artistWeight = 1.0 / 3.0
)

// Score вычисляет совместимость user с candidate.
// artists должен содержать записи топ-артистов user; отсутствующие
// записи дают нулевой вклад.
func Score(user, candidate *profile.User, artists map[string]*profile.Artist) float64 {
	if user == nil || candidate == nil {
		return Undetermined
	}
	if len(user.GenreCounts) == 0 || len(candidate.GenreCounts) == 0 {
		return Undetermined
	}
	if len(user.TopArtistIDs) == 0 || len(candidate.TopArtistIDs) == 0 {
		return Undetermined
	}

	genre, ok := GenreScore(user.GenreCounts, candidate.GenreCounts)
	if !ok {
		return Undetermined
	}
	artist := ArtistScore(user, candidate.ID, artists)

	return clamp01(genre*genreWeight + artist*artistWeight)
}

// MutualScore - среднее оценок в обоих направлениях.
func MutualScore(a, b *profile.User, artists map[string]*profile.Artist) float64 {
	ab := Score(a, b, artists)
	ba := Score(b, a, artists)
	if ab == Undetermined || ba == Undetermined {
		return Undetermined
	}
	return (ab + ba) / 2
}

// GenreScore нормирует счётчики каждого пользователя на его средний
// счётчик и возвращает Σ nu*nc / Σ nu² по жанрам первого пользователя.
// ok = false, если знаменатель равен нулю.
//
// Отношение может превышать 1, когда кандидат слушает те же жанры
// заметно интенсивнее относительно своего среднего; результат обрезается до 1.
func GenreScore(user, candidate map[string]int) (float64, bool) {
	userAvg := average(user)
	if userAvg <= 0 {
		return 0, false
	}
	candAvg := average(candidate)

	var num, den float64
	for g, cu := range user {
		nu := float64(cu) / userAvg
		var nc float64
		if candAvg > 0 {
			nc = float64(candidate[g]) / candAvg
		}
		num += nu * nc
		den += nu * nu
	}
	if den == 0 {
		return 0, false
	}
	return clamp01(num / den), true
}

// ArtistScore сравнивает ранги по первым N топ-артистам user,
// где N = min(ArtistUniverse, len(user.TopArtistIDs)).
// Отсутствующий ранг считается равным N ("вне топа").
// При фиксированном N=50 одинаковые короткие топы давали бы меньше 1, поэтому N зависит от длины топа.
func ArtistScore(user *profile.User, candidateID string, artists map[string]*profile.Artist) float64 {
	n := len(user.TopArtistIDs)
	if n > ArtistUniverse {
		n = ArtistUniverse
	}
	if n == 0 {
		return 0
	}

	var acc float64
	for _, id := range user.TopArtistIDs[:n] {
		a := artists[id]
		ru := rankOrDefault(a, user.ID, n)
		rc := rankOrDefault(a, candidateID, n)
		acc += float64(n-ru) * float64(n-rc)
	}

	best := float64(n*(n+1)*(2*n+1)) / 6
	return clamp01(acc / best)
}

func rankOrDefault(a *profile.Artist, userID string, n int) int {
	r, ok := a.Rank(userID)
	if !ok || r > n {
		return n
	}
	if r < 0 {
		return 0
	}
	return r
}

func average(counts map[string]int) float64 {
	if len(counts) == 0 {
		return 0
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	return float64(total) / float64(len(counts))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
