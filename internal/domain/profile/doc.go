// Package profile содержит доменную модель музыкального профиля пользователя.
//
// Пакет определяет:
//
//   - Сущности: User, Artist, Genre
//   - Value Objects: MatchOutcome, TrackOutcome, SeedCursor, TrackLedger
//   - Интерфейсы репозиториев: UserRepository, ArtistRepository, GenreRepository
//
// # Обратные индексы
//
// Artist.ListenerRanks и Genre.ListenerCounts - разреженные индексы,
// ключом которых является ID слушателя. Они позволяют находить кандидатов
// и считать пересечения без хранения данных по каждой паре пользователей.
//
// # Карты исходов
//
// User.MatchOutcomes и User.RecommendedTracks растут монотонно.
// Любая реализация хранилища обязана обновлять один ключ карты,
// не затирая параллельные обновления других ключей той же записи.
package profile
