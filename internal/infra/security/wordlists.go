package security

// commonPasswords is matched against the whole lowercased password.
var commonPasswords = []string{
	"123456", "123456789", "12345678", "12345", "1234567", "1234567890", "111111",
	"000000", "123123", "654321", "666666", "121212", "112233", "987654321",
	"password", "password1", "password12", "password123", "password1234", "passw0rd",
	"p@ssw0rd", "p@ssword", "qwerty", "qwerty123", "qwertyuiop", "1q2w3e4r",
	"1qaz2wsx", "zaq12wsx", "asdfghjkl", "asdf1234", "abc123", "abcd1234",
	"iloveyou", "admin", "admin123", "administrator", "welcome", "welcome1",
	"welcome123", "letmein", "letmein123", "monkey", "dragon", "master", "sunshine",
	"princess", "football", "baseball", "superman", "batman", "trustno1", "shadow",
	"michael", "jennifer", "hunter2", "starwars", "whatever", "freedom", "secret",
	"changeme", "default", "login", "guest", "test", "test123", "qwe123", "zxcvbnm",
	"mustang", "access", "flower", "hello", "hello123", "charlie", "donald", "ninja",
	"azerty", "solo", "loveme", "summer2024", "winter2024", "spring2024", "autumn2024",
	"duolingo", "language", "learning",
}

// dictionaryWords are matched as substrings of the lowercased password.
var dictionaryWords = []string{
	"password", "passwd", "admin", "login", "welcome", "letmein", "qwerty", "master",
	"dragon", "monkey", "shadow", "sunshine", "princess", "football", "baseball",
	"soccer", "hockey", "summer", "winter", "spring", "autumn", "secret", "love",
	"hello", "money", "freedom", "computer", "internet", "security", "system",
	"server", "access", "account", "default", "guest", "user", "root", "test",
	"school", "family", "friend", "house", "happy", "flower", "orange", "banana",
	"apple", "cookie", "chocolate", "purple", "yellow", "silver", "golden", "angel",
	"tiger", "lion", "eagle", "bear", "wolf", "horse", "kitty", "puppy",
	"language", "lesson", "learn", "study", "teacher", "student", "course",
	"english", "spanish", "french", "german", "italian", "japanese", "chinese",
}
