package catalog

// The default catalog ships in-process. Display texts are prompt fragments:
// they slot directly into the composed instruction, so they are written as
// photography direction, not UI labels.

var defaultModels = []Facet{
	{ID: "elena_nordic", Category: CategoryModel, Display: "Elena, a tall Scandinavian model in her mid-20s, platinum blonde hair pulled back, calm confident expression"},
	{ID: "amara_editorial", Category: CategoryModel, Display: "Amara, a West African model with close-cropped hair, striking bone structure, and a poised editorial presence"},
	{ID: "mei_runway", Category: CategoryModel, Display: "Mei, an East Asian runway model with shoulder-length black hair and an understated, serene expression"},
	{ID: "diego_urban", Category: CategoryModel, Display: "Diego, a Latin American male model with textured dark hair, light stubble, and a relaxed streetwear attitude"},
	{ID: "sofia_classic", Category: CategoryModel, Display: "Sofia, a Mediterranean model with wavy brunette hair and a warm, timeless catalogue smile"},
}

var defaultBackgrounds = []Facet{
	{ID: "studio_white", Category: CategoryBackground, Display: "seamless white studio cyclorama, clean floor-to-wall curve, no props"},
	{ID: "loft_industrial", Category: CategoryBackground, Display: "industrial loft with exposed brick, tall steel-framed windows, and soft daylight spill"},
	{ID: "city_street", Category: CategoryBackground, Display: "European city street at dusk, blurred storefronts and warm street lamps behind the subject"},
	{ID: "garden_terrace", Category: CategoryBackground, Display: "Mediterranean garden terrace with stone balustrade, climbing greenery, and open sky"},
	{ID: "gallery_minimal", Category: CategoryBackground, Display: "minimal art gallery interior, bare concrete walls, single bench, museum stillness"},
}

var defaultPoses = []Facet{
	{ID: "standing_relaxed", Category: CategoryPose, Display: "standing relaxed, weight on one hip, arms loose, gaze to camera"},
	{ID: "walking_motion", Category: CategoryPose, Display: "mid-stride walking pose with natural arm swing and garment in motion"},
	{ID: "seated_editorial", Category: CategoryPose, Display: "seated on a low stool, elongated posture, legs angled, editorial tension"},
	{ID: "leaning_wall", Category: CategoryPose, Display: "leaning a shoulder against the wall, ankles crossed, nonchalant"},
	{ID: "profile_turn", Category: CategoryPose, Display: "three-quarter turn away from camera, face in profile, garment back detail visible"},
}

var defaultCameraAngles = []Facet{
	{ID: "eye_level_full", Category: CategoryCameraAngle, Display: "eye-level full-body framing, 50mm look, subject centered"},
	{ID: "low_angle_hero", Category: CategoryCameraAngle, Display: "low-angle hero shot from knee height, elongating the silhouette"},
	{ID: "three_quarter", Category: CategoryCameraAngle, Display: "three-quarter crop from mid-thigh up, slight camera tilt"},
	{ID: "detail_closeup", Category: CategoryCameraAngle, Display: "tight detail crop on the garment's texture, hardware, and stitching"},
	{ID: "high_fashion_top", Category: CategoryCameraAngle, Display: "elevated high angle looking down, graphic composition, strong negative space"},
}

var defaultStyles = []Facet{
	{ID: "editorial_clean", Category: CategoryStyle, Display: "clean magazine editorial: restrained styling, precise retouching, premium minimalism"},
	{ID: "street_style", Category: CategoryStyle, Display: "candid street-style photography energy, documentary framing, authentic feel"},
	{ID: "haute_couture", Category: CategoryStyle, Display: "haute couture campaign: dramatic, sculptural, gallery-grade artistry"},
	{ID: "catalog_commercial", Category: CategoryStyle, Display: "commercial catalogue clarity: true-to-life colors, garment fully legible, no stylistic distortion"},
	{ID: "vintage_film", Category: CategoryStyle, Display: "vintage 35mm film look, subtle grain, muted palette, soft halation"},
}

var defaultLightings = []Facet{
	{ID: "softbox_studio", Category: CategoryLighting, Display: "large softbox key with gentle fill, soft wrap-around shadows"},
	{ID: "golden_hour", Category: CategoryLighting, Display: "late golden-hour sun, long warm shadows, glowing rim light"},
	{ID: "high_key", Category: CategoryLighting, Display: "bright high-key lighting, near-shadowless, airy and clean"},
	{ID: "dramatic_rim", Category: CategoryLighting, Display: "low-key dramatic lighting with a hard rim light separating subject from background"},
	{ID: "overcast_natural", Category: CategoryLighting, Display: "overcast natural daylight, big diffused source, faithful fabric color"},
}

// Default returns the built-in registry. It panics only on a programming
// error in the tables above, which is caught by the package tests.
func Default() *Registry {
	var facets []Facet
	facets = append(facets, defaultModels...)
	facets = append(facets, defaultBackgrounds...)
	facets = append(facets, defaultPoses...)
	facets = append(facets, defaultCameraAngles...)
	facets = append(facets, defaultStyles...)
	facets = append(facets, defaultLightings...)

	r, err := New(facets)
	if err != nil {
		panic(err)
	}
	return r
}
