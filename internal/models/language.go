package models

import "strings"

// Language constants
const (
	LangEnglish           = "en"
	LangSimplifiedChinese = "zh_CN"
)

// DefaultLanguage is used for users whose client language has no translation.
const DefaultLanguage = LangEnglish

// Translation is a map of message keys to translated text
type Translation map[string]string

// Translations stores all language translations
var Translations = map[string]Translation{
	LangEnglish: {
		"welcome":       "Hello %s! 👋\n\nWelcome to the Movie Bot. Please choose an option from the menu below:",
		"button_search": "🔍 Search Movie",
		"button_stats":  "📊 Bot Stats",
		"button_help":   "❓ Help",

		"join_required_link":   "❌ To get this file, you must first join our channel(s). After joining, please click the original link again.",
		"join_required_search": "❌ To use the bot, you must first join our channel(s). After joining, please click the '🔍 Search Movie' button again.",
		"join_button":          "Join %s",

		"link_not_found":   "Sorry, the link is invalid or the requested movie was not found. 😔",
		"search_prompt":    "Please send the name of the movie you want to search for. To cancel, type /cancel.",
		"search_not_found": "Sorry, that movie could not be found. Please try again. 😔",
		"search_cancelled": "Search operation has been canceled.",
		"delivery_warning": "❗️ This file will be automatically deleted in %s.",
		"delivery_failed":  "Sorry, an error occurred while sending the file: %v",
		"generic_error":    "Sorry, something went wrong. Please try again later.",
		"duration_seconds": "%d seconds",
		"duration_minutes": "%d minutes",

		"help_text":  "To search for a movie, please use the '🔍 Search Movie' button from the menu.",
		"stats_text": "📊 Bot Statistics:\n\nTotal Users: %d\nTotal Movies: %d",

		"getlink_usage":      "Usage: <code>/getlink Movie Name</code>",
		"getlink_result":     "Dedicated link for '%s':\n\n<code>%s</code>",
		"getlink_not_found":  "A movie with this name was not found.",
		"delvideo_usage":     "Usage: <code>/delvideo Movie Name</code>",
		"delvideo_done":      "✅ Deleted %d record(s) matching '%s' from the database.",
		"delvideo_not_found": "A movie with this name was not found in the database.",

		"index_no_caption": "⚠️ A video was posted in the channel without a caption and was not indexed.",
		"index_done":       "✅ The video '%s' has been indexed successfully (id %d).",
		"index_duplicate":  "⚠️ A video with the name '%s' has already been registered.",
		"index_failed":     "Error during indexing: %v",

		// Command descriptions for Telegram command menu
		"cmd_desc_start":  "Show the main menu",
		"cmd_desc_search": "Search for a movie",
		"cmd_desc_help":   "Show help",
		"cmd_desc_stats":  "Show bot statistics",
		"cmd_desc_cancel": "Cancel the current search",
	},
	LangSimplifiedChinese: {
		"welcome":       "你好 %s！👋\n\n欢迎使用电影机器人，请从下方菜单中选择一个选项：",
		"button_search": "🔍 搜索电影",
		"button_stats":  "📊 机器人统计",
		"button_help":   "❓ 帮助",

		"join_required_link":   "❌ 获取此文件前，您必须先加入我们的频道。加入后请再次点击原链接。",
		"join_required_search": "❌ 使用机器人前，您必须先加入我们的频道。加入后请再次点击“🔍 搜索电影”按钮。",
		"join_button":          "加入 %s",

		"link_not_found":   "抱歉，链接无效或未找到所请求的电影。😔",
		"search_prompt":    "请发送您要搜索的电影名称。发送 /cancel 取消。",
		"search_not_found": "抱歉，未找到该电影，请重试。😔",
		"search_cancelled": "搜索已取消。",
		"delivery_warning": "❗️ 此文件将在 %s 后自动删除。",
		"delivery_failed":  "抱歉，发送文件时出错：%v",
		"generic_error":    "抱歉，出现了问题，请稍后再试。",
		"duration_seconds": "%d 秒",
		"duration_minutes": "%d 分钟",

		"help_text":  "要搜索电影，请使用菜单中的“🔍 搜索电影”按钮。",
		"stats_text": "📊 机器人统计：\n\n用户总数：%d\n电影总数：%d",

		"cmd_desc_start":  "显示主菜单",
		"cmd_desc_search": "搜索电影",
		"cmd_desc_help":   "显示帮助信息",
		"cmd_desc_stats":  "显示统计信息",
		"cmd_desc_cancel": "取消当前搜索",
	},
}

// GetTranslation returns the correct translation for a given language code and key
func GetTranslation(lang, key string) string {
	if _, ok := Translations[lang]; !ok {
		lang = DefaultLanguage
	}

	if translation, ok := Translations[lang][key]; ok {
		return translation
	}

	// Fall back to the default language if key not found in specified language
	if translation, ok := Translations[DefaultLanguage][key]; ok {
		return translation
	}

	return key
}

// LanguageFor maps a Telegram client language code (e.g. "zh-hans") onto a supported language.
func LanguageFor(languageCode string) string {
	code := strings.ToLower(languageCode)
	switch {
	case strings.HasPrefix(code, "zh"):
		return LangSimplifiedChinese
	default:
		return DefaultLanguage
	}
}

// MatchMenuButton reports which menu button key ("button_search", ...) text belongs to, in any language.
func MatchMenuButton(text string) (string, bool) {
	for _, key := range []string{"button_search", "button_stats", "button_help"} {
		for _, translation := range Translations {
			if label, ok := translation[key]; ok && label == text {
				return key, true
			}
		}
	}
	return "", false
}
