package bot

// Кнопки reply-клавиатуры.
const (
	ButtonSearch    = "🔎 Поиск"
	ButtonContact   = "📞 Связаться"
	ButtonFavorites = "⭐ Избранное"
	ButtonWebApp    = "📱 Мини-приложение"
	ButtonOpenApp   = "📱 Открыть приложение"
)

// Inline-кнопки карточек.
const (
	ButtonDetail    = "📖 Подробнее"
	ButtonCare      = "🪴 Уход"
	ButtonHistory   = "📜 История"
	ButtonAddFav    = "⭐ В избранное"
	ButtonRemoveFav = "🗑 Удалить"
	ButtonMore      = "➡️ Ещё"
)

const WelcomeText = `🌹 Добро пожаловать в мир роз!
✨ Используйте мини-приложение для расширенных возможностей
🔍 Или просто напишите название сорта`

const OpenAppText = "📱 Нажмите кнопку ниже для открытия мини-приложения:"

const AppUnavailableText = "📱 Мини-приложение пока недоступно. Напишите название сорта, и я поищу его в каталоге."

const SearchPromptText = "🔎 Введите название розы или его часть, например: «Аваланж»."

const NothingFoundText = "😔 Ничего не нашлось. Попробуйте написать название иначе или короче."

const MoreResultsText = "Показаны не все результаты."

const FavoritesHeaderText = "⭐ Ваше избранное:"

const FavoritesEmptyText = "⭐ В избранном пока пусто. Найдите розу и нажмите «⭐ В избранное» на карточке."

const StaleText = "⏳ Эти результаты устарели. Пожалуйста, выполните поиск снова."

const FavoritesUnavailableText = "⚠️ Не удалось сохранить изменения в избранном. Попробуйте чуть позже."

const ApologyText = "❌ Произошла ошибка. Попробуйте позже."

// Короткие ответы на нажатие кнопки (всплывают над чатом).
const (
	AnswerAdded          = "⭐ Добавлено в избранное"
	AnswerAlreadyPresent = "Уже в избранном"
	AnswerRemoved        = "🗑 Удалено из избранного"
	AnswerNotFound       = "Этой розы уже нет в избранном"
)
