package normalize

// TypeEntry 是一个规范化产品类型及其关键词（全部小写）。
type TypeEntry struct {
	Name     string   `yaml:"name" validate:"required"`
	Keywords []string `yaml:"keywords" validate:"required,min=1,dive,required"`
}

// BrandEntry 是 (关键词, 规范品牌名) 对。列表顺序即匹配优先级。
type BrandEntry struct {
	Keyword string `yaml:"keyword" validate:"required"`
	Brand   string `yaml:"brand" validate:"required"`
}

// Taxonomy 是标题规范化使用的两张有序字典。
// 关键词冲突在编写字典时解决，查询时不再处理。
type Taxonomy struct {
	Types  []TypeEntry  `yaml:"types" validate:"required,min=1,dive"`
	Brands []BrandEntry `yaml:"brands" validate:"dive"`
}

// DefaultTaxonomy 返回内置的电子产品字典副本。
func DefaultTaxonomy() Taxonomy {
	t := Taxonomy{
		Types:  make([]TypeEntry, len(defaultTypes)),
		Brands: make([]BrandEntry, len(defaultBrands)),
	}
	for i, e := range defaultTypes {
		t.Types[i] = TypeEntry{Name: e.Name, Keywords: append([]string(nil), e.Keywords...)}
	}
	copy(t.Brands, defaultBrands)
	return t
}

var defaultTypes = []TypeEntry{
	// computing
	{Name: "laptop", Keywords: []string{"laptop", "notebook", "macbook"}},
	{Name: "pc", Keywords: []string{"desktop", "pc", "computer", "workstation"}},
	{Name: "monitor", Keywords: []string{"monitor", "display"}},
	{Name: "keyboard", Keywords: []string{"keyboard"}},
	{Name: "mouse", Keywords: []string{"mouse", "mice"}},
	{Name: "tablet", Keywords: []string{"tablet", "ipad"}},

	// accessories
	{Name: "monitor stand", Keywords: []string{"monitor stand", "screen stand"}},
	{Name: "monitor mount", Keywords: []string{"monitor mount", "monitor arm", "screen mount"}},
	{Name: "laptop stand", Keywords: []string{"laptop stand", "notebook stand", "laptop cooling stand", "laptop riser"}},
	{Name: "keyboard stand", Keywords: []string{"keyboard stand", "keyboard tray"}},
	{Name: "phone mount", Keywords: []string{"phone mount", "phone holder", "phone stand"}},
	{Name: "tablet mount", Keywords: []string{"tablet mount", "tablet stand", "tablet holder"}},
	{Name: "headphone stand", Keywords: []string{"headphone stand", "headphone holder", "headset stand"}},

	// audio
	{Name: "headphones", Keywords: []string{"headphones", "headphone", "headset", "earphones", "earbuds", "airpods"}},
	{Name: "speakers", Keywords: []string{"speaker", "speakers", "soundbar"}},
	{Name: "microphone", Keywords: []string{"microphone", "mic"}},

	// storage
	{Name: "hard drive", Keywords: []string{"hard drive", "hdd", "external drive"}},
	{Name: "ssd", Keywords: []string{"ssd", "solid state drive"}},
	{Name: "flash drive", Keywords: []string{"flash drive", "thumb drive", "usb drive"}},
	{Name: "memory card", Keywords: []string{"memory card", "sd card", "sdhc", "sdxc", "microsd", "micro sd", "tf card", "compact flash", "cf card", "memory stick"}},

	// networking
	{Name: "router", Keywords: []string{"router", "wifi router", "wireless router"}},
	{Name: "modem", Keywords: []string{"modem"}},
	{Name: "network switch", Keywords: []string{"network switch", "ethernet switch"}},
	{Name: "access point", Keywords: []string{"access point", "wifi extender"}},

	// cables & adapters
	{Name: "cable", Keywords: []string{"cable", "cord", "wire"}},
	{Name: "adapter", Keywords: []string{"adapter", "converter", "dongle"}},
	{Name: "hub", Keywords: []string{"hub", "usb hub", "dock", "docking station"}},

	// power
	{Name: "power supply", Keywords: []string{"power supply", "psu"}},
	{Name: "battery", Keywords: []string{"battery", "battery pack"}},
	{Name: "charger", Keywords: []string{"charger", "charging", "type c charger"}},
	{Name: "power bank", Keywords: []string{"power bank", "portable charger"}},

	// tv & video
	{Name: "tv", Keywords: []string{"tv", "television", "smart tv"}},
	{Name: "tv mount", Keywords: []string{"tv mount", "tv wall mount", "television mount"}},
	{Name: "projector", Keywords: []string{"projector"}},
	{Name: "projector mount", Keywords: []string{"projector mount"}},
	{Name: "streaming device", Keywords: []string{"fire stick", "roku", "chromecast", "apple tv"}},

	// input/output
	{Name: "webcam", Keywords: []string{"webcam", "web camera"}},
	{Name: "printer", Keywords: []string{"printer"}},
	{Name: "scanner", Keywords: []string{"scanner"}},

	// gaming
	{Name: "console", Keywords: []string{"playstation", "xbox", "nintendo", "ps4", "ps5"}},
	{Name: "controller", Keywords: []string{"controller", "gamepad", "joystick"}},

	// smart home
	{Name: "smart speaker", Keywords: []string{"echo", "alexa speaker", "google home", "homepod"}},
	{Name: "smart display", Keywords: []string{"echo show", "nest hub"}},
	{Name: "smart plug", Keywords: []string{"smart plug", "wifi plug"}},
	{Name: "smart bulb", Keywords: []string{"smart bulb", "smart light"}},
	{Name: "security camera", Keywords: []string{"security camera", "surveillance camera"}},
	{Name: "video doorbell", Keywords: []string{"video doorbell", "smart video doorbell"}},

	// mobile
	{Name: "phone", Keywords: []string{"phone", "iphone", "smartphone"}},
	{Name: "phone case", Keywords: []string{"phone case", "iphone case"}},
	{Name: "screen protector", Keywords: []string{"screen protector", "tempered glass"}},

	{Name: "remote", Keywords: []string{"remote", "remote control"}},

	// camera equipment
	{Name: "camera", Keywords: []string{"camera", "dslr", "mirrorless"}},
	{Name: "camera lens", Keywords: []string{"camera lens", "lens"}},
	{Name: "tripod", Keywords: []string{"tripod"}},
	{Name: "camera mount", Keywords: []string{"camera mount"}},

	// wearables; "fitness tracker" belongs to smartwatch only
	{Name: "smartwatch", Keywords: []string{"smartwatch", "smart watch", "watch", "apple watch", "galaxy watch", "fitness tracker", "fitbit"}},
	{Name: "fitness band", Keywords: []string{"fitness band", "smart band", "mi band"}},

	{Name: "stylus", Keywords: []string{"stylus", "pencil", "apple pencil", "s pen", "digital pen", "tablet pen"}},

	{Name: "tracker", Keywords: []string{"airtag", "tracker", "tile tracker", "bluetooth tracker", "smart tracker", "tracking device", "samsung smarttag", "galaxy smarttag"}},
}

var defaultBrands = []BrandEntry{
	// computing
	{"dell", "Dell"}, {"hp", "HP"}, {"lenovo", "Lenovo"}, {"asus", "Asus"}, {"acer", "Acer"},
	{"microsoft", "Microsoft"}, {"apple", "Apple"}, {"msi", "MSI"}, {"razer", "Razer"},

	// audio/video
	{"sony", "Sony"}, {"bose", "Bose"}, {"samsung", "Samsung"}, {"lg", "LG"}, {"vizio", "Vizio"},
	{"jbl", "JBL"}, {"jabra", "Jabra"}, {"sennheiser", "Sennheiser"}, {"beats", "Beats"},
	{"polk", "Polk"}, {"klipsch", "Klipsch"}, {"yamaha", "Yamaha"},

	// phones & tablets; "vivo" is the phone maker, not the mount maker
	{"google", "Google"}, {"oneplus", "OnePlus"}, {"xiaomi", "Xiaomi"}, {"huawei", "Huawei"},
	{"oppo", "OPPO"}, {"vivo", "Vivo"}, {"realme", "Realme"}, {"motorola", "Motorola"},
	{"nokia", "Nokia"}, {"zte", "ZTE"}, {"tcl", "TCL"}, {"honor", "Honor"}, {"blackberry", "BlackBerry"},

	// accessories
	{"logitech", "Logitech"}, {"corsair", "Corsair"}, {"anker", "Anker"},
	{"belkin", "Belkin"}, {"tp-link", "TP-Link"}, {"netgear", "Netgear"},

	// storage
	{"seagate", "Seagate"}, {"wd", "Western Digital"}, {"sandisk", "SanDisk"},
	{"kingston", "Kingston"}, {"crucial", "Crucial"},

	// camera
	{"canon", "Canon"}, {"nikon", "Nikon"}, {"fujifilm", "Fujifilm"}, {"gopro", "GoPro"},

	// mobile accessories
	{"otterbox", "OtterBox"}, {"spigen", "Spigen"}, {"mophie", "Mophie"},

	// wearables
	{"fitbit", "Fitbit"}, {"garmin", "Garmin"}, {"fossil", "Fossil"}, {"amazfit", "Amazfit"},
	{"withings", "Withings"}, {"polar", "Polar"}, {"suunto", "Suunto"},

	// trackers
	{"tile", "Tile"}, {"chipolo", "Chipolo"},

	// stylus
	{"wacom", "Wacom"}, {"adonit", "Adonit"},

	// doorbells
	{"ring", "Ring"}, {"blink", "Blink"},
}
